package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/sync-party/internal/domain"
	"github.com/weiawesome/sync-party/pkg/log"
	"github.com/weiawesome/sync-party/pkg/response"
)

const (
	CookieName   = "sync_party_sid"
	PrincipalKey = "principal"
)

// Middleware exposes the authority to gin.
type Middleware struct {
	authority    *Authority
	secureCookie bool
}

// NewMiddleware creates the session middleware. secureCookie marks the
// cookie Secure, which requires https.
func NewMiddleware(authority *Authority, secureCookie bool) *Middleware {
	return &Middleware{authority: authority, secureCookie: secureCookie}
}

// Resolve attaches the principal when the request carries a valid session
// cookie. It never aborts.
func (m *Middleware) Resolve() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(CookieName)
		if err == nil && token != "" {
			if p, ok := m.authority.Authenticate(c.Request.Context(), token); ok {
				c.Set(PrincipalKey, p)
				c.Set(log.FieldUserID, p.ID)
				c.Set(log.FieldUsername, p.Username)
			}
		}
		c.Next()
	}
}

// RequireAuth aborts with 401 when no principal was resolved.
func (m *Middleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if PrincipalFrom(c) == nil {
			response.Abort(c, http.StatusUnauthorized, response.MsgNotAuthenticated)
			return
		}
		c.Next()
	}
}

// RequireAdmin aborts with 401 for anonymous callers and 403 for non-admins.
func (m *Middleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := PrincipalFrom(c)
		if p == nil {
			response.Abort(c, http.StatusUnauthorized, response.MsgNotAuthenticated)
			return
		}
		if !p.IsAdmin() {
			response.Abort(c, http.StatusForbidden, response.MsgNotAuthorized)
			return
		}
		c.Next()
	}
}

// SetCookie writes the session cookie.
func (m *Middleware) SetCookie(c *gin.Context, sess *Session) {
	maxAge := int(time.Until(sess.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, sess.Token, maxAge, "/", "", m.secureCookie, true)
}

// ClearCookie expires the session cookie.
func (m *Middleware) ClearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", m.secureCookie, true)
}

// PrincipalFrom returns the principal set by Resolve, or nil.
func PrincipalFrom(c *gin.Context) *domain.Principal {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*domain.Principal)
	return p
}
