package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-electives-api/internal/models"
	appErrors "github.com/noah-isme/sma-electives-api/pkg/errors"
	"github.com/noah-isme/sma-electives-api/pkg/ratelimit"
)

type fakeLimiter struct {
	results []ratelimit.Result
	err     error
	keys    []string
}

func (l *fakeLimiter) Allow(_ context.Context, key string) (ratelimit.Result, error) {
	l.keys = append(l.keys, key)
	if l.err != nil {
		return ratelimit.Result{}, l.err
	}
	res := l.results[0]
	l.results = l.results[1:]
	return res, nil
}

type fakeValidator struct {
	claims *models.JWTClaims
}

func (v fakeValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return v.claims, nil
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/", handlers...)
	return r
}

func serve(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitRejectsOverLimit(t *testing.T) {
	limiter := &fakeLimiter{results: []ratelimit.Result{
		{Allowed: true, Remaining: 0},
		{Allowed: false, RetryAfter: 1500 * time.Millisecond},
	}}
	r := newRouter(RateLimit(limiter, nil))

	first := serve(r, "")
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	second := serve(r, "")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "2", second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), "RATE_LIMITED")
	assert.Len(t, limiter.keys, 2)
}

func TestRateLimitFailsOpen(t *testing.T) {
	r := newRouter(RateLimit(&fakeLimiter{err: errors.New("redis: connection refused")}, nil))
	assert.Equal(t, http.StatusNoContent, serve(r, "").Code)
}

func TestJWTAndRoles(t *testing.T) {
	admin := fakeValidator{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}}
	coordinator := fakeValidator{claims: &models.JWTClaims{UserID: "u2", Role: models.RoleCoordinator}}

	r := newRouter(JWT(admin), RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	assert.Equal(t, http.StatusUnauthorized, serve(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Token good").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Bearer bad").Code)
	assert.Equal(t, http.StatusNoContent, serve(r, "Bearer good").Code)

	r = newRouter(JWT(coordinator), RequireRoles(models.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, serve(r, "Bearer good").Code)
}

type observation struct {
	method, route string
	status        int
}

type recordingObserver struct {
	seen []observation
}

func (o *recordingObserver) ObserveHTTPRequest(method, route string, status int, _ time.Duration) {
	o.seen = append(o.seen, observation{method, route, status})
}

func TestMetricsLabelsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &recordingObserver{}
	r := gin.New()
	r.Use(Metrics(observer, "/metrics"))
	r.GET("/admin/enrollments/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/admin/enrollments/42", "/metrics", "/wp-login.php"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, []observation{
		{http.MethodGet, "/admin/enrollments/:id", http.StatusOK},
		{http.MethodGet, unmatchedRoute, http.StatusNotFound},
	}, observer.seen)
}
