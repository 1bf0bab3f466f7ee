package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/sync-party/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(m *Middleware) *gin.Engine {
	r := gin.New()
	r.Use(m.Resolve())
	r.GET("/me", m.RequireAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, PrincipalFrom(c).Username)
	})
	r.GET("/admin", m.RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestMiddleware_RequireAuth(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAuthority(t)
	r := newTestRouter(NewMiddleware(a, false))

	_, err := a.Register(ctx, "alice", "secret1")
	require.NoError(t, err)
	sess, err := a.Login(ctx, "alice", "secret1")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"msg":"notAuthenticated"`)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: sess.Token})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", w.Body.String())
}

func TestMiddleware_RequireAdmin(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAuthority(t)
	r := newTestRouter(NewMiddleware(a, false))

	_, err := a.Register(ctx, "alice", "secret1")
	require.NoError(t, err)
	_, err = a.CreateUser(ctx, "root", "secret1", domain.RoleAdmin)
	require.NoError(t, err)

	call := func(username string) int {
		sess, err := a.Login(ctx, username, "secret1")
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: sess.Token})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusForbidden, call("alice"))
	assert.Equal(t, http.StatusNoContent, call("root"))
}
