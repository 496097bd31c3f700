package web

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	visitorCookie  = "nimestream_visitor"
	darkModeCookie = "nimestream_dark_mode"

	cookieMaxAge = 365 * 24 * 60 * 60

	visitorKey = "visitor"
)

// visitor makes sure every browser carries a stable id that scopes its
// bookmarks.
func (h *handler) visitor(c *gin.Context) {
	id, err := c.Cookie(visitorCookie)
	if err != nil || uuid.Validate(id) != nil {
		id = uuid.NewString()
		setCookie(c, visitorCookie, id)
	}
	c.Set(visitorKey, id)
	c.Next()
}

func visitorID(c *gin.Context) string {
	return c.GetString(visitorKey)
}

func setCookie(c *gin.Context, name, value string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, cookieMaxAge, "/", "", false, true)
}

// darkMode is on unless the visitor explicitly turned it off.
func darkMode(c *gin.Context) bool {
	v, err := c.Cookie(darkModeCookie)
	if err != nil {
		return true
	}
	return v != "false"
}

func (h *handler) toggleTheme(c *gin.Context) {
	next := "true"
	if darkMode(c) {
		next = "false"
	}
	setCookie(c, darkModeCookie, next)
	c.Redirect(http.StatusSeeOther, returnPath(c.PostForm("return")))
}

// returnPath only allows redirects back into this site.
func returnPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.Contains(p, `\`) {
		return "/"
	}
	return p
}
