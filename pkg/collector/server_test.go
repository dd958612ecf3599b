package collector

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "test-key"

func post(t *testing.T, h http.Handler, path, token string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const batchBody = `{"events":[{"eventType":"screen_view","sessionId":"s1","deviceId":"d1","clientTimestamp":"2024-01-01T00:00:00.000Z","payload":{"screen":"home"}},{"eventType":"success","sessionId":"s1","deviceId":"d1","clientTimestamp":"2024-01-01T00:00:01.000Z","payload":{}}]}`

func TestEventsAccepted(t *testing.T) {
	srv := NewServer(testKey)
	h := srv.Handler()

	rec := post(t, h, "/v1/events", testKey, []byte(batchBody), nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var receipt Receipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	assert.NotEmpty(t, receipt.ID)
	assert.Equal(t, 2, receipt.Accepted)

	events := srv.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "screen_view", events[0].EventType)
	assert.Equal(t, "home", events[0].Payload["screen"])
	assert.Equal(t, "success", events[1].EventType)

	batches := srv.Batches()
	require.Len(t, batches, 1)
	assert.Equal(t, receipt.ID, batches[0].ID)
}

func TestAuthentication(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"wrong token", "other", http.StatusUnauthorized},
		{"valid token", testKey, http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(testKey)
			rec := post(t, srv.Handler(), "/v1/events", tt.token, []byte(batchBody), nil)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestAnyTokenWithoutKey(t *testing.T) {
	srv := NewServer("")
	rec := post(t, srv.Handler(), "/v1/events", "anything", []byte(batchBody), nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestGzipBody(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(batchBody))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	srv := NewServer(testKey)
	rec := post(t, srv.Handler(), "/v1/events", testKey, buf.Bytes(), map[string]string{"Content-Encoding": "gzip"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, srv.Events(), 2)
}

func TestRejectsBadBodies(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
	}{
		{"invalid json", "/v1/events", `{"events":`},
		{"empty batch", "/v1/events", `{"events":[]}`},
		{"feedback without type", "/v1/feedback", `{"message":"hi"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(testKey)
			rec := post(t, srv.Handler(), tt.path, testKey, []byte(tt.body), nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, srv.Events())
			assert.Empty(t, srv.Feedback())
		})
	}
}

func TestFeedbackAccepted(t *testing.T) {
	srv := NewServer(testKey)
	body := `{"type":"review","message":"crashes on save","sessionId":"s1","deviceId":"d1","context":{"frustration_level":"NONE","frustration_score":0}}`

	rec := post(t, srv.Handler(), "/v1/feedback", testKey, []byte(body), nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	fb := srv.Feedback()
	require.Len(t, fb, 1)
	assert.Equal(t, "review", fb[0].Feedback.Type)
	assert.Equal(t, "crashes on save", fb[0].Feedback.Message)
	assert.Equal(t, "NONE", fb[0].Feedback.Context["frustration_level"])
}

func TestSetFailStatus(t *testing.T) {
	srv := NewServer(testKey)
	h := srv.Handler()

	srv.SetFailStatus(http.StatusServiceUnavailable)
	rec := post(t, h, "/v1/events", testKey, []byte(batchBody), nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, srv.Events())

	srv.SetFailStatus(0)
	rec = post(t, h, "/v1/events", testKey, []byte(batchBody), nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, srv.Events(), 2)
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	srv := NewServer(testKey)
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Contains(t, []int{http.StatusOK, http.StatusServiceUnavailable}, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "feelback_queue_depth"))
}
