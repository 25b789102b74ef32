package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-electives-api/pkg/errors"
	"github.com/noah-isme/sma-electives-api/pkg/middleware/requestid"
)

func serve(t *testing.T, handler gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestid.Middleware())
	r.GET("/", handler)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestid.HeaderKey, "req-abcdef12")
	r.ServeHTTP(w, req)
	return w
}

func TestJSONCarriesRequestID(t *testing.T) {
	w := serve(t, func(c *gin.Context) { Created(c, gin.H{"admitted": true}) })

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	var env struct {
		Data      map[string]interface{} `json:"data"`
		RequestID string                 `json:"request_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, true, env.Data["admitted"])
	assert.Equal(t, "req-abcdef12", env.RequestID)
}

func TestErrorHidesCauseAndHintsRetry(t *testing.T) {
	w := serve(t, func(c *gin.Context) {
		Error(c, appErrors.Unavailable(errors.New("dial tcp 10.0.0.5:5432: connection refused")))
	})

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "5", w.Header().Get("Retry-After"))
	assert.NotContains(t, w.Body.String(), "10.0.0.5")
	assert.Contains(t, w.Body.String(), appErrors.ErrUnavailable.Code)
}

func TestErrorWithoutRetryHint(t *testing.T) {
	w := serve(t, func(c *gin.Context) { Error(c, appErrors.ErrValidation) })

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, w.Header().Get("Retry-After"))
}
