package handlers

import (
	"errors"
	"net/http"
	"time"

	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	sessionCookie = "session_token"
	userIDKey     = "userId"
)

// userIdMiddleware resolves the session cookie into a user id. It never
// rejects: anonymous requests simply carry no userId.
func (h *Handler) userIdMiddleware(c *gin.Context) {
	token, err := c.Cookie(sessionCookie)
	if err != nil || token == "" {
		c.Next()
		return
	}

	userId, err := h.services.ParseSession(c.Request.Context(), token)
	if err != nil {
		// Only a token that is itself bad loses its cookie; a failing
		// revocation store leaves the browser logged in for the next request.
		if errors.Is(err, service.ErrAuth) {
			if h.log != nil {
				h.log.Infow("session_rejected", "err", err)
			}
			h.clearSessionCookie(c)
		} else if h.log != nil {
			h.log.Errorw("session_check_failed", "err", err)
		}
		c.Next()
		return
	}

	// store in Gin context
	c.Set(userIDKey, userId)
	c.Next()
}

// requireUser sends anonymous browsers to the login page.
func (h *Handler) requireUser(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		h.setFlash(c, "Please log in first.")
		c.Redirect(http.StatusSeeOther, "/login")
		c.Abort()
		return
	}
	c.Next()
}

// requireUserJSON is requireUser for API and websocket clients.
func (h *Handler) requireUserJSON(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "login required",
		})
		return
	}
	c.Next()
}

// requestLogger writes one line per request.
func (h *Handler) requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()
	if h.log == nil {
		return
	}
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	h.log.Infow("http_request",
		"method", c.Request.Method,
		"route", route,
		"status", c.Writer.Status(),
		"latency", time.Since(start),
		"client_ip", c.ClientIP(),
	)
}

func currentUserID(c *gin.Context) (int, bool) {
	id := c.GetInt(userIDKey)
	return id, id > 0
}

func (h *Handler) setSessionCookie(c *gin.Context, token string, expires time.Time) {
	maxAge := int(time.Until(expires).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, token, maxAge, "/", "", h.secureCookie, true)
}

func (h *Handler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, "", -1, "/", "", h.secureCookie, true)
}
