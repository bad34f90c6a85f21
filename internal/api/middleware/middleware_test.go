package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"looprec/backend/pkg/auth"
)

func newRouter(logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware(), RequestLogger(logger), AuthMiddleware())
	r.GET("/who", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("subject"))
	})
	return r
}

func get(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthDisabledWithoutSecret(t *testing.T) {
	auth.InitJWT("")
	w := get(newRouter(zap.NewNop()), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestAuthRequiresValidToken(t *testing.T) {
	auth.InitJWT("secret")
	t.Cleanup(func() { auth.InitJWT("") })
	r := newRouter(zap.NewNop())

	w := get(r, "")
	assert.Contains(t, w.Body.String(), `"code":401`)

	w = get(r, "Bearer garbage")
	assert.Contains(t, w.Body.String(), `"code":401`)

	token, err := auth.GenerateToken("operator", 3600)
	require.NoError(t, err)
	w = get(r, "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "operator", w.Body.String())
}

func TestPreflight(t *testing.T) {
	auth.InitJWT("secret")
	t.Cleanup(func() { auth.InitJWT("") })

	req := httptest.NewRequest(http.MethodOptions, "/who", nil)
	w := httptest.NewRecorder()
	newRouter(zap.NewNop()).ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	auth.InitJWT("")
	get(newRouter(zap.New(core)), "")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Request", entry.Message)
	assert.Equal(t, "/who", entry.ContextMap()["path"])
	assert.EqualValues(t, http.StatusOK, entry.ContextMap()["status"])
}
