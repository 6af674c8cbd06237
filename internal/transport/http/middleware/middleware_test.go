package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"storyverse/internal/core/auth"
)

func init() { gin.SetMode(gin.TestMode) }

func TestMain(m *testing.M) { goleak.VerifyTestMain(m) }

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	j := &auth.JWTer{Secret: []byte("test-secret-0123456789"), Issuer: "storyverse", TTL: time.Hour}
	r := gin.New()
	r.GET("/me", Auth(j), func(c *gin.Context) {
		uid, _ := auth.UserIDFromContext(c.Request.Context())
		c.String(http.StatusOK, uid)
	})

	w := do(r, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"code":401`)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(auth.HeaderToken, "garbage")
	assert.Equal(t, http.StatusBadRequest, do(r, req).Code)

	tok, err := j.Issue("u1")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(auth.HeaderToken, tok)
	w = do(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	assert.Equal(t, http.StatusOK, do(r, req).Code)
}

func TestRateLimitPerIP(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitPerIP(0, 2, time.Minute))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	from := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		return do(r, req).Code
	}
	assert.Equal(t, http.StatusOK, from("10.0.0.1"))
	assert.Equal(t, http.StatusOK, from("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, from("10.0.0.1"))
	assert.Equal(t, http.StatusOK, from("10.0.0.2"))
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zap.NewNop()))
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := do(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal error")
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(KeyRequestID)) })

	w := do(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get(KeyRequestID))
	assert.Equal(t, w.Header().Get(KeyRequestID), w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(KeyRequestID, "given")
	assert.Equal(t, "given", do(r, req).Body.String())

	for _, bad := range []string{strings.Repeat("x", 65), "has space", "tab\tid"} {
		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(KeyRequestID, bad)
		got := do(r, req).Body.String()
		assert.NotEqual(t, bad, got)
		assert.Len(t, got, 36)
	}
}

func TestTimeout(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(20 * time.Millisecond))
	r.GET("/slow", func(c *gin.Context) { <-c.Request.Context().Done() })
	r.GET("/fast", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := do(r, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Contains(t, w.Body.String(), `"code":504`)
	assert.Equal(t, http.StatusOK, do(r, httptest.NewRequest(http.MethodGet, "/fast", nil)).Code)
}

func TestConcurrencyLimit(t *testing.T) {
	entered, release := make(chan struct{}), make(chan struct{})
	r := gin.New()
	r.Use(ConcurrencyLimit(1))
	r.GET("/", func(c *gin.Context) {
		entered <- struct{}{}
		<-release
		c.Status(http.StatusOK)
	})
	r.GET("/other", func(c *gin.Context) { c.Status(http.StatusOK) })

	done := make(chan int)
	go func() { done <- do(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code }()
	<-entered

	// 唯一名额被占，等到 ctx 到期仍拿不到
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/other", nil).WithContext(ctx)
	assert.Equal(t, http.StatusServiceUnavailable, do(r, req).Code)

	close(release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestMaxBodyBytes(t *testing.T) {
	r := gin.New()
	r.Use(MaxBodyBytes(8))
	r.POST("/", func(c *gin.Context) {
		var in map[string]any
		if err := c.ShouldBindJSON(&in); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"content":"far too long for eight bytes"}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, do(r, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusOK, do(r, req).Code)
}
