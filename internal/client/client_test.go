package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/raine/katazuke-proxy/internal/quota"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdit(t *testing.T) {
	var req *http.Request
	var body map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req = r
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"success":true,"imageBase64":"cG5n","imageUrl":"data:image/png;base64,cG5n","model":"gemini-2.5-flash-image","usedFallback":true,"fallbackReason":"busy","usage":{"pro":{"used":1,"limit":10}},"debug":{"runId":"r1","roomType":"office","didRetry":true}}`)
	}))
	defer ts.Close()

	client := NewClient(ClientOpts{BaseURL: ts.URL, Language: "ja"})
	res, err := client.Edit(context.Background(), EditParams{Image: []byte("jpeg"), EditType: "future_vision", HighQuality: true})

	require.NoError(t, err)
	assert.Equal(t, "/api/gemini/edit-image", req.URL.Path)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "ja", req.Header.Get("Accept-Language"))
	assert.Equal(t, "data:image/jpeg;base64,"+base64.StdEncoding.EncodeToString([]byte("jpeg")), body["imageBase64"])
	assert.Equal(t, "future_vision", body["editType"])
	assert.Equal(t, true, body["highQuality"])

	assert.True(t, res.UsedFallback)
	require.NotNil(t, res.FallbackReason)
	assert.Equal(t, "busy", *res.FallbackReason)
	assert.Equal(t, quota.Usage{Used: 1, Limit: 10}, res.Usage[quota.HighQualityGeneration])
	assert.Equal(t, "r1", res.Debug.RunID)
	assert.True(t, res.Debug.DidRetry)
	img, err := res.Image()
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), img)
}

func TestEdit_APIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"error":"busy","retryAfter":10,"suggestion":"turn off high quality"}`)
	}))
	defer ts.Close()

	_, err := NewClient(ClientOpts{BaseURL: ts.URL}).Edit(context.Background(), EditParams{Image: []byte("x")})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, "busy", apiErr.Message)
	assert.Equal(t, 10, apiErr.RetryAfter)
	assert.Equal(t, "turn off high quality", apiErr.Suggestion)
	assert.Contains(t, err.Error(), "retry after 10s")
}

func TestEdit_NonJSONError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := NewClient(ClientOpts{BaseURL: ts.URL}).Edit(context.Background(), EditParams{Image: []byte("x")})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.NotEmpty(t, apiErr.Message)
}

func TestUsageAndHealth(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/usage":
			io.WriteString(w, `{"success":true,"usage":{"flash":{"used":2,"limit":50},"retry":{"used":0,"limit":50}}}`)
		case "/api/health":
			io.WriteString(w, `{"status":"ok","version":"3.4"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()
	client := NewClient(ClientOpts{BaseURL: ts.URL})

	usage, err := client.Usage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, quota.Usage{Used: 2, Limit: 50}, usage[quota.StandardGeneration])
	assert.Len(t, usage, 2)

	health, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &HealthResponse{Status: "ok", Version: "3.4"}, health)
}

func TestCleanupSpots(t *testing.T) {
	var path string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"success":true,"spots":[{"location":"table","action":"stack the books"}],"totalEstimatedTime":"3 min","encouragement":"Go!"}`)
	}))
	defer ts.Close()

	res, err := NewClient(ClientOpts{BaseURL: ts.URL}).CleanupSpots(context.Background(), []byte("img"), "image/png")

	require.NoError(t, err)
	assert.Equal(t, "/api/analyze-cleanup-spots", path)
	require.Len(t, res.Spots, 1)
	assert.Equal(t, "stack the books", res.Spots[0].Action)
	assert.Equal(t, "3 min", res.TotalEstimatedTime)
}
