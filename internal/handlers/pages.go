package handlers

import (
	"embed"
	"html/template"
	"net/http"

	"storefront/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const flashCookie = "flash"

//go:embed templates/*.html
var templatesFS embed.FS

var pageTemplates = template.Must(template.New("pages").ParseFS(templatesFS, "templates/*.html"))

// page renders a template with the common layout fields (User, Flash).
func (h *Handler) page(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if _, ok := data["User"]; !ok {
		data["User"] = h.currentUser(c)
	}
	if flash := h.popFlash(c); flash != "" {
		data["Flash"] = flash
	}
	c.HTML(status, name, data)
}

// errorPage renders a service failure for browser clients.
func (h *Handler) errorPage(c *gin.Context, logKey string, err error, kv ...interface{}) {
	status := statusFor(err)
	h.logError(status, logKey, err, kv...)
	h.page(c, status, "error.html", gin.H{"Title": "Error", "Message": publicMessage(err)})
}

func (h *Handler) currentUser(c *gin.Context) *models.User {
	id, ok := currentUserID(c)
	if !ok {
		return nil
	}
	u, err := h.services.CurrentUser(c.Request.Context(), id)
	if err != nil {
		if h.log != nil {
			h.log.Infow("current_user_lookup_failed", "user_id", id, "err", err)
		}
		return nil
	}
	return u
}

// setFlash stores a one-shot message shown on the next rendered page.
func (h *Handler) setFlash(c *gin.Context, msg string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookie, msg, 60, "/", "", h.secureCookie, true)
}

func (h *Handler) popFlash(c *gin.Context) string {
	msg, err := c.Cookie(flashCookie)
	if err != nil || msg == "" {
		return ""
	}
	c.SetCookie(flashCookie, "", -1, "/", "", h.secureCookie, true)
	return msg
}

// formatMinor renders minor units as a decimal amount, e.g. 2000 -> "20.00".
func formatMinor(amount int64) string {
	return decimal.New(amount, -2).StringFixed(2)
}
