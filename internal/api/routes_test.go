package api

import (
	"alcyxob/motion-coach/internal/logger"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPingAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())

	w = srv.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "motioncoach_http_requests_total")
	assert.Contains(t, w.Body.String(), `route="/ping"`)
}

func TestRecoveredPanicIsCounted(t *testing.T) {
	srv := newTestServer(t)
	srv.router.GET("/explode", func(c *gin.Context) { panic("boom") })

	w := srv.do(httptest.NewRequest(http.MethodGet, "/explode", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	w = srv.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `motioncoach_http_requests_total{method="GET",route="/explode",status="500"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/processed-data", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Idempotency-Key")
	w := srv.do(req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name        string
		development bool
		wantDetail  bool
	}{
		{name: "production hides detail", development: false},
		{name: "development shows detail", development: true, wantDetail: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(Recovery(logger.Nop(), tt.development), ErrorHandler(logger.Nop(), tt.development))
			router.GET("/fail", func(c *gin.Context) { respondError(c, errors.New("disk on fire")) })
			router.GET("/panic", func(c *gin.Context) { panic("boom") })

			for path, detail := range map[string]string{"/fail": "disk on fire", "/panic": "boom"} {
				w := httptest.NewRecorder()
				router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
				require.Equal(t, http.StatusInternalServerError, w.Code, path)

				body := decode(t, w)
				assert.Equal(t, "internal server error", body["error"])
				if tt.wantDetail {
					assert.Equal(t, detail, body["detail"])
				} else {
					assert.NotContains(t, body, "detail")
				}
			}
		})
	}
}
