package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mysocial/shop-api/internal/service"
)

// SessionCookie writes and clears the session cookie.  The API is called
// cross-site by the web app, hence SameSite=None with Secure.
type SessionCookie struct {
	Name string
}

func (sc SessionCookie) name() string {
	if sc.Name == "" {
		return "mysocial_session"
	}
	return sc.Name
}

// Read returns the raw token from the request cookie.
func (sc SessionCookie) Read(c echo.Context) string {
	ck, err := c.Cookie(sc.name())
	if err != nil {
		return ""
	}
	return ck.Value
}

// Set issues the cookie with a full inactivity window.
func (sc SessionCookie) Set(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     sc.name(),
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
		MaxAge:   int(service.InactivityTimeout / time.Second),
	})
}

// Clear expires the cookie with the same attributes it was set with.
func (sc SessionCookie) Clear(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     sc.name(),
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
		MaxAge:   -1,
	})
}
