package handlers

import (
	"errors"
	"net/http"

	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	msgBadCredentials = "Invalid email or password."
	msgLoginRequired  = "Email and password are required."
	msgRegisterFields = "Name, a valid email and a password are required."
	msgEmailInUse     = "That email is already registered."
)

type loginForm struct {
	Email    string `form:"email" binding:"required"`
	Password string `form:"password" binding:"required"`
}

type registerForm struct {
	Name     string `form:"name" binding:"required"`
	Email    string `form:"email" binding:"required,email"`
	Password string `form:"password" binding:"required"`
}

func (h *Handler) showLogin(c *gin.Context) {
	h.page(c, http.StatusOK, "login.html", gin.H{"Title": "Log in", "Email": ""})
}

// login checks credentials; any auth failure flashes a message and redirects back.
func (h *Handler) login(c *gin.Context) {
	var input loginForm
	if err := c.ShouldBind(&input); err != nil {
		if h.log != nil {
			h.log.Infow("auth_bad_request_body", "err", err)
		}
		h.setFlash(c, msgLoginRequired)
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}

	sess, err := h.services.Authenticate(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		if !errors.Is(err, service.ErrAuth) {
			h.errorPage(c, "auth_sign_in_error", err, "email", input.Email)
			return
		}
		if h.log != nil {
			h.log.Infow("auth_sign_in_failed", "email", input.Email, "err", err)
		}
		h.setFlash(c, msgBadCredentials)
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}

	h.setSessionCookie(c, sess.Token, sess.ExpiresAt)
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) logout(c *gin.Context) {
	if token, err := c.Cookie(sessionCookie); err == nil && token != "" {
		if err := h.services.Logout(c.Request.Context(), token); err != nil && h.log != nil {
			h.log.Infow("auth_logout_failed", "err", err)
		}
	}
	h.clearSessionCookie(c)
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) showRegister(c *gin.Context) {
	h.page(c, http.StatusOK, "register.html", gin.H{"Title": "Register", "Name": "", "Email": "", "Error": ""})
}

// register creates the account and logs the new user in. Validation and
// duplicate-email errors are shown inline on the form.
func (h *Handler) register(c *gin.Context) {
	var input registerForm
	if err := c.ShouldBind(&input); err != nil {
		if h.log != nil {
			h.log.Infow("auth_bad_request_body", "err", err)
		}
		h.registerFormError(c, http.StatusBadRequest, input, msgRegisterFields)
		return
	}

	ctx := c.Request.Context()
	u, err := h.services.Register(ctx, input.Name, input.Email, input.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailInUse):
			h.registerFormError(c, http.StatusConflict, input, msgEmailInUse)
		case errors.Is(err, service.ErrValidation):
			h.registerFormError(c, http.StatusBadRequest, input, msgRegisterFields)
		default:
			h.errorPage(c, "auth_sign_up_error", err, "email", input.Email)
			return
		}
		if h.log != nil {
			h.log.Infow("auth_sign_up_failed", "email", input.Email, "err", err)
		}
		return
	}

	sess, err := h.services.IssueSession(ctx, u.ID)
	if err != nil {
		h.errorPage(c, "auth_issue_session_failed", err, "user_id", u.ID)
		return
	}
	h.setSessionCookie(c, sess.Token, sess.ExpiresAt)
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) registerFormError(c *gin.Context, status int, input registerForm, msg string) {
	h.page(c, status, "register.html", gin.H{
		"Title": "Register",
		"Name":  input.Name,
		"Email": input.Email,
		"Error": msg,
	})
}
