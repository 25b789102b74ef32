package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-electives-api/internal/middleware"
	"github.com/noah-isme/sma-electives-api/internal/models"
	appErrors "github.com/noah-isme/sma-electives-api/pkg/errors"
)

type fakeAuthenticator struct {
	last models.LoginRequest
}

func (f *fakeAuthenticator) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	f.last = req
	if req.Password != "secret" {
		return nil, appErrors.ErrInvalidCredentials
	}
	return &models.LoginResponse{AccessToken: "token", ExpiresIn: 3600}, nil
}

func TestAuthHandlerLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := &fakeAuthenticator{}
	h := NewAuthHandler(auth)
	r := gin.New()
	r.POST("/auth/login", h.Login)

	rec := doRequest(r, http.MethodPost, "/auth/login", map[string]string{"email": "admin@colegiotgs.cl", "password": "secret"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "token", decode(t, rec).Data["access_token"])
	assert.NotEmpty(t, auth.last.IP)

	rec = doRequest(r, http.MethodPost, "/auth/login", map[string]string{"email": "admin@colegiotgs.cl", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandlerMe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(&fakeAuthenticator{})
	r := gin.New()
	r.GET("/auth/me", func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Email: "admin@colegiotgs.cl", Role: models.RoleAdmin})
	}, h.Me)
	r.GET("/anonymous/me", h.Me)

	rec := doRequest(r, http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ADMIN", decode(t, rec).Data["role"])

	assert.Equal(t, http.StatusUnauthorized, doRequest(r, http.MethodGet, "/anonymous/me", nil).Code)
}
