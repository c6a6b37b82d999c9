package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/threadscan/internal/detection"
	"github.com/fyrsmithlabs/threadscan/internal/pipeline"
	"github.com/fyrsmithlabs/threadscan/internal/secrets"
)

const loginThread = `From: Anna Lee <anna@example.com>
Date: Mon, 2 Jun 2025 09:00:00 +0000
Subject: Phoenix - login page

Can you fix the login page before Friday?`

type stubAnalyzer struct {
	err    error
	called int
}

func (s *stubAnalyzer) Analyze(_ context.Context, threads map[string]string) (*pipeline.Result, error) {
	s.called++
	if s.err != nil {
		return nil, s.err
	}
	return &pipeline.Result{RunID: "run-1"}, nil
}

func newPipeline(t *testing.T, reg *prometheus.Registry) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.New(pipeline.Options{
		Rules:      detection.MustCompile(detection.DefaultCueConfig()),
		Registerer: reg,
	})
	require.NoError(t, err)
	return p
}

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	cfg := secrets.DefaultConfig()
	cfg.Gitleaks = false
	guard, err := secrets.New(cfg, nil)
	require.NoError(t, err)

	server, err := NewServer(newPipeline(t, reg), guard, zap.NewNop(), &Config{Gatherer: reg})
	require.NoError(t, err)
	return server
}

func postJSON(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestNewServer(t *testing.T) {
	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(&stubAnalyzer{}, nil, zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost:9090", server.Addr())
		assert.Equal(t, "5M", server.config.BodyLimit)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(&stubAnalyzer{}, nil, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when analyzer is nil", func(t *testing.T) {
		_, err := NewServer(nil, nil, zap.NewNop(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "analyzer cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	server := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleAnalyze(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		server := setupTestServer(t)
		rec := postJSON(t, server, "/api/v1/analyze", AnalyzeRequest{
			Threads: map[string]string{"phoenix.txt": loginThread},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			RunID string `json:"run_id"`
			Flags []struct {
				Category       string `json:"category"`
				Status         string `json:"status"`
				Project        string `json:"project"`
				TriggerSnippet string `json:"trigger_snippet"`
			} `json:"flags"`
			Metrics map[string]any `json:"metrics"`
			Report  string         `json:"report"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

		assert.NotEmpty(t, resp.RunID)
		require.Len(t, resp.Flags, 1)
		assert.Equal(t, "ACTION", resp.Flags[0].Category)
		assert.Equal(t, "OPEN", resp.Flags[0].Status)
		assert.Equal(t, "Phoenix", resp.Flags[0].Project)
		assert.Contains(t, resp.Flags[0].TriggerSnippet, "Can you fix the login page")
		assert.EqualValues(t, 1, resp.Metrics["emails_loaded"])
		assert.EqualValues(t, 1, resp.Metrics["open_flags"])
		assert.Contains(t, resp.Report, "## 📁 Phoenix")
		assert.Contains(t, resp.Report, "Can you fix the login page")
	})

	t.Run("no flags encodes empty list", func(t *testing.T) {
		server := setupTestServer(t)
		rec := postJSON(t, server, "/api/v1/analyze", AnalyzeRequest{
			Threads: map[string]string{"quiet.txt": "From: a@example.com\nSubject: Atlas - notes\n\nAll good here."},
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"flags":[]`)
	})

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"threads":`},
		{"missing threads", `{}`},
		{"traversal name", `{"threads":{"../etc/passwd.txt":"x"}}`},
		{"wrong extension", `{"threads":{"notes.md":"x"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := setupTestServer(t)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			server.echo.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	t.Run("analyzer failure is a 500 without details", func(t *testing.T) {
		stub := &stubAnalyzer{err: errors.New("disk on fire")}
		server, err := NewServer(stub, nil, zap.NewNop(), &Config{Gatherer: prometheus.NewRegistry()})
		require.NoError(t, err)

		rec := postJSON(t, server, "/api/v1/analyze", AnalyzeRequest{Threads: map[string]string{"a.txt": "x"}})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "disk on fire")
		assert.Equal(t, 1, stub.called)
	})

	t.Run("body limit", func(t *testing.T) {
		stub := &stubAnalyzer{}
		server, err := NewServer(stub, nil, zap.NewNop(), &Config{BodyLimit: "1K", Gatherer: prometheus.NewRegistry()})
		require.NoError(t, err)

		rec := postJSON(t, server, "/api/v1/analyze", AnalyzeRequest{
			Threads: map[string]string{"big.txt": strings.Repeat("x", 4096)},
		})
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, 0, stub.called)
	})
}

func TestHandleScrub(t *testing.T) {
	server := setupTestServer(t)

	rec := postJSON(t, server, "/api/v1/scrub", ScrubRequest{Content: "key sk-abcdefghijklmnopqrstuvwx here"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ScrubResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotContains(t, resp.Content, "sk-abcdefghijklmnopqrstuvwx")
	assert.Equal(t, 1, resp.FindingsCount)
	assert.Equal(t, []string{"openai-api-key"}, resp.Rules)

	rec = postJSON(t, server, "/api/v1/scrub", ScrubRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScrubNotRegisteredWithoutGuard(t *testing.T) {
	server, err := NewServer(&stubAnalyzer{}, nil, zap.NewNop(), &Config{Gatherer: prometheus.NewRegistry()})
	require.NoError(t, err)

	rec := postJSON(t, server, "/api/v1/scrub", ScrubRequest{Content: "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	server := setupTestServer(t)
	postJSON(t, server, "/api/v1/analyze", AnalyzeRequest{Threads: map[string]string{"phoenix.txt": loginThread}})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `threadscan_flags_total{category="ACTION",status="OPEN"} 1`)
	assert.Contains(t, body, `threadscan_messages_total{stage="loaded"} 1`)
	assert.Contains(t, body, "threadscan_run_duration_seconds_count 1")
}

func TestMiddleware(t *testing.T) {
	t.Run("adds request ID to response", func(t *testing.T) {
		server := setupTestServer(t)
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)
		assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("recovers from panic", func(t *testing.T) {
		server := setupTestServer(t)
		server.echo.GET("/panic", func(c echo.Context) error {
			panic("test panic")
		})
		req := httptest.NewRequest(http.MethodGet, "/panic", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestServerLifecycle(t *testing.T) {
	server, err := NewServer(&stubAnalyzer{}, nil, zap.NewNop(), &Config{
		Host:     "127.0.0.1",
		Port:     18791,
		Gatherer: prometheus.NewRegistry(),
	})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:18791/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))
	assert.ErrorIs(t, <-errCh, http.ErrServerClosed)
}
