package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/profile-plausibility/internal/analysis"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/config"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/dispatch"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/frontend"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/monitoring"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/security"
	"github.com/ZanzyTHEbar/profile-plausibility/internal/types"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.MinDelay = 0
	cfg.DelayJitter = 0
	cfg.RequestTimeout = 5 * time.Second
	return cfg
}

func newTestServer(t *testing.T, cfg config.Config, opts ...dispatch.Option) (*server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := newServer(cfg, nil, monitoring.NewLoggerWithWriter(io.Discard, slog.LevelError), opts...)
	t.Cleanup(srv.Close)
	return srv, srv.router()
}

func postJSON(r *gin.Engine, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	_, r := newTestServer(t, testConfig())

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{"GET /health returns OK status", http.MethodGet, http.StatusOK},
		{"POST /health is not routed", http.MethodPost, http.StatusNotFound},
		{"DELETE /health is not routed", http.MethodDelete, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, "/health", nil))
			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectedStatus == http.StatusOK {
				var resp types.HealthResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, "ok", resp.Status)
				assert.Equal(t, "disabled", resp.Redis)
				assert.NotEmpty(t, resp.Timestamp)
			}
		})
	}
}

func TestAnalyzeEndpoint_ValidRequests(t *testing.T) {
	_, r := newTestServer(t, testConfig())

	tests := []struct {
		name       string
		profileURL string
		expected   string
	}{
		{"profile url", "https://www.linkedin.com/in/johndoe", "https://www.linkedin.com/in/johndoe"},
		{"company url with trailing slash", "linkedin.com/company/acme-corp/", "linkedin.com/company/acme-corp/"},
		{"surrounding whitespace is trimmed", "  https://linkedin.com/in/Jane_Doe  ", "https://linkedin.com/in/Jane_Doe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(r, "/api/analyze", types.AnalyzeRequest{ProfileURL: tt.profileURL}, nil)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var resp types.AnalyzeResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.expected, resp.ProfileURL)
			assert.Equal(t, analysis.AnalyzeInput(tt.expected), resp.Report)
		})
	}
}

func TestAnalyzeEndpoint_InvalidRequests(t *testing.T) {
	srv, r := newTestServer(t, testConfig())

	tests := []struct {
		name          string
		body          string
		expectedError string
	}{
		{"not a linkedin url", `{"profile_url":"https://github.com/johndoe"}`, security.ProfileURLMessage},
		{"missing profile path", `{"profile_url":"https://www.linkedin.com/feed"}`, security.ProfileURLMessage},
		{"empty profile url", `{"profile_url":""}`, "Invalid request body"},
		{"malformed json", `{"profile_url":`, "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.expectedError, resp["error"])
			assert.Equal(t, "VALIDATION_ERROR", resp["code"])
			assert.Equal(t, "validation", resp["category"])
		})
	}

	stats := srv.metrics.GetAnalysisStats()
	assert.Equal(t, int64(len(tests)), stats["validation_failures"])
}

func TestAnalyzeEndpoint_TooLong(t *testing.T) {
	cfg := testConfig()
	cfg.MaxInputLength = 40
	_, r := newTestServer(t, cfg)

	w := postJSON(r, "/api/analyze", types.AnalyzeRequest{
		ProfileURL: "https://www.linkedin.com/in/a-very-long-profile-handle",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "exceeds maximum length of 40 characters")
}

func TestAnalyzeEndpoint_UnsupportedContentType(t *testing.T) {
	_, r := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewBufferString("profile"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestAnalyzeEndpoint_Superseded(t *testing.T) {
	var calls atomic.Int32
	delay := dispatch.WithDelayFunc(func() time.Duration {
		if calls.Add(1) == 1 {
			return 2 * time.Second
		}
		return 0
	})
	srv, r := newTestServer(t, testConfig(), delay)

	session := map[string]string{frontend.SessionHeader: "session-a"}
	first := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		first <- postJSON(r, "/api/analyze", types.AnalyzeRequest{ProfileURL: "https://linkedin.com/in/first"}, session)
	}()

	require.Eventually(t, func() bool { return srv.dispatcher.Pending("session-a") },
		time.Second, 5*time.Millisecond)

	second := postJSON(r, "/api/analyze", types.AnalyzeRequest{ProfileURL: "https://linkedin.com/in/second"}, session)
	require.Equal(t, http.StatusOK, second.Code)

	var resp types.AnalyzeResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	assert.Equal(t, "https://linkedin.com/in/second", resp.ProfileURL)

	select {
	case w := <-first:
		assert.Equal(t, http.StatusConflict, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "REQUEST_SUPERSEDED", body["code"])
	case <-time.After(5 * time.Second):
		t.Fatal("superseded request never completed")
	}

	stats := srv.metrics.GetAnalysisStats()
	assert.Equal(t, int64(1), stats["superseded"])
	assert.Equal(t, int64(1), stats["completed"])
}

func TestAnalyzeEndpoint_Timeout(t *testing.T) {
	cfg := testConfig()
	cfg.RequestTimeout = 50 * time.Millisecond
	_, r := newTestServer(t, cfg, dispatch.WithDelayFunc(func() time.Duration { return time.Second }))

	w := postJSON(r, "/api/analyze", types.AnalyzeRequest{ProfileURL: "https://linkedin.com/in/slow"}, nil)

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Contains(t, w.Body.String(), "TIMEOUT_ERROR")
}

func TestAnalyzeEndpoint_UsesCache(t *testing.T) {
	srv, r := newTestServer(t, testConfig())

	for i := 0; i < 3; i++ {
		w := postJSON(r, "/api/analyze", types.AnalyzeRequest{ProfileURL: "https://linkedin.com/in/cached"}, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, 1, srv.reports.Size())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cache/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, float64(1), stats["active_items"])
}

func TestValidateEndpoint(t *testing.T) {
	_, r := newTestServer(t, testConfig())

	tests := []struct {
		name     string
		url      string
		expected types.ValidateResponse
	}{
		{"valid profile", "https://www.linkedin.com/in/johndoe/", types.ValidateResponse{Valid: true}},
		{"valid company", "https://LinkedIn.com/company/acme", types.ValidateResponse{Valid: true}},
		{"invalid host", "https://example.com/in/johndoe", types.ValidateResponse{Valid: false, Error: security.ProfileURLMessage}},
		{"empty", "", types.ValidateResponse{Valid: false, Error: security.ProfileURLMessage}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(r, "/api/validate", types.ValidateRequest{ProfileURL: tt.url}, nil)
			require.Equal(t, http.StatusOK, w.Code)

			var resp types.ValidateResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.expected, resp)
		})
	}
}

func TestRateLimiting(t *testing.T) {
	cfg := testConfig()
	cfg.IPLimitPerMin = 2
	_, r := newTestServer(t, cfg)

	body := types.ValidateRequest{ProfileURL: "https://linkedin.com/in/x"}
	for i := 0; i < 2; i++ {
		w := postJSON(r, "/api/validate", body, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := postJSON(r, "/api/validate", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")

	// operational endpoints are not limited
	health := httptest.NewRecorder()
	r.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, health.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	_, r := newTestServer(t, testConfig())

	postJSON(r, "/api/analyze", types.AnalyzeRequest{ProfileURL: "https://linkedin.com/in/metrics"}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Contains(t, stats, "total_requests")
	assert.Contains(t, stats, "rate_limiter")
	assert.Contains(t, stats, "compression")

	analysisStats, ok := stats["analysis"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), analysisStats["completed"])
}

func TestFormPage(t *testing.T) {
	_, r := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestCORSPreflight(t *testing.T) {
	_, r := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodOptions, "/api/analyze", nil)
	req.Header.Set("Origin", "https://app.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, X-Session-ID")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSwaggerRoute(t *testing.T) {
	disabled := testConfig()
	_, r := newTestServer(t, disabled)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	enabled := testConfig()
	enabled.EnableSwagger = true
	_, r = newTestServer(t, enabled)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Profile Plausibility Check API")
	assert.Contains(t, w.Body.String(), "/api/analyze")
}
