package middleware

// identity.go holds the context keys the session and gate middleware fill
// in, and the accessors handlers use to read them back.  Handlers never
// read c.Get directly.

import (
	"github.com/labstack/echo/v4"

	"github.com/mysocial/shop-api/internal/model"
)

const (
	keySession      = "session"
	keyUserID       = "user_id"
	keyShop         = "shop"
	keySubscription = "subscription"
	keyViewOnly     = "view_only"
	keyRawToken     = "session_token"
)

// CurrentSession returns the validated session with its user and device,
// or nil for anonymous requests.
func CurrentSession(c echo.Context) *model.SessionDetail {
	s, _ := c.Get(keySession).(*model.SessionDetail)
	return s
}

// CurrentUser returns the authenticated user or nil.
func CurrentUser(c echo.Context) *model.User {
	if s := CurrentSession(c); s != nil {
		return &s.User
	}
	return nil
}

// CurrentShop returns the shop the gate loaded, or nil.
func CurrentShop(c echo.Context) *model.Shop {
	s, _ := c.Get(keyShop).(*model.Shop)
	return s
}

// CurrentSubscription returns the subscription the gate loaded and whether
// it is view-only.  ok is false when the gate did not run for this request.
func CurrentSubscription(c echo.Context) (sub *model.Subscription, viewOnly bool, ok bool) {
	v, ok := c.Get(keyViewOnly).(bool)
	if !ok {
		return nil, false, false
	}
	sub, _ = c.Get(keySubscription).(*model.Subscription)
	return sub, v, true
}

// SessionToken returns the raw cookie token of the current request, if any.
func SessionToken(c echo.Context) string {
	s, _ := c.Get(keyRawToken).(string)
	return s
}

// userID is the rate-limit identity: the user id, or "guest".
func userID(c echo.Context) string {
	if u := CurrentUser(c); u != nil && u.ID != "" {
		return u.ID
	}
	return "guest"
}
