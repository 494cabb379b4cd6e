package aiclient

import (
	"alcyxob/motion-coach/internal/config"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "http://ai.test"

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) ObserveAICall(op, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, op+":"+outcome)
}

func newTestClient(t *testing.T) (*Client, *recordingObserver) {
	t.Helper()
	obs := &recordingObserver{}
	c := New(config.AIConfig{URL: testBaseURL + "/", Key: "secret-key", Timeout: 5 * time.Second}, WithObserver(obs))
	httpmock.ActivateNonDefault(c.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return c, obs
}

func TestProcess_SendsMultipart(t *testing.T) {
	c, obs := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/process",
		func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("Authorization") != "Bearer secret-key" {
				return httpmock.NewStringResponse(http.StatusUnauthorized, `{"error":"no key"}`), nil
			}
			if err := req.ParseMultipartForm(1 << 20); err != nil {
				return nil, err
			}
			assert.Equal(t, "u-1", req.FormValue("userId"))
			assert.Equal(t, "ex-1", req.FormValue("exercise_id"))
			assert.Equal(t, "video", req.FormValue("fileType"))
			assert.Equal(t, "media-1.mp4", req.FormValue("original_path"))
			assert.Equal(t, "http://localhost:8080/uploads/media-1.mp4", req.FormValue("url"))

			f, hdr, err := req.FormFile("files")
			if err != nil {
				return nil, err
			}
			defer f.Close()
			content, _ := io.ReadAll(f)
			assert.Equal(t, "clip.mp4", hdr.Filename)
			assert.Equal(t, "video/mp4", hdr.Header.Get("Content-Type"))
			assert.Equal(t, "frames", string(content))

			return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{
				"_id":    "65f0c0ffee0000000000abcd",
				"status": "stored",
			})
		})

	resp, err := c.Process(context.Background(), ProcessRequest{
		UserID:       "u-1",
		ExerciseID:   "ex-1",
		OriginalPath: "media-1.mp4",
		URL:          "http://localhost:8080/uploads/media-1.mp4",
		FileType:     "video",
		FileName:     "clip.mp4",
		ContentType:  "video/mp4",
		File:         strings.NewReader("frames"),
	})
	require.NoError(t, err)
	assert.Equal(t, "65f0c0ffee0000000000abcd", resp.ID)
	assert.Equal(t, "stored", resp.Raw["status"])
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
	assert.Equal(t, []string{"process:success"}, obs.outcomes)
}

func TestProcess_ExtendedJSONID(t *testing.T) {
	c, _ := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/process",
		httpmock.NewStringResponder(http.StatusCreated, `{"id":{"$oid":"65f0c0ffee0000000000abcd"}}`))

	resp, err := c.Process(context.Background(), ProcessRequest{File: strings.NewReader("x")})
	require.NoError(t, err)
	assert.Equal(t, "65f0c0ffee0000000000abcd", resp.ID)
}

func TestProcess_UpstreamError(t *testing.T) {
	c, obs := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/process",
		httpmock.NewStringResponder(http.StatusBadGateway, `{"error":"model offline"}`).
			HeaderSet(http.Header{"Content-Type": []string{"application/json"}}))

	_, err := c.Process(context.Background(), ProcessRequest{File: strings.NewReader("x")})
	require.Error(t, err)

	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusBadGateway, upstream.StatusCode)
	assert.JSONEq(t, `{"error":"model offline"}`, string(upstream.Body))
	assert.Equal(t, "application/json", upstream.ContentType)
	assert.Equal(t, 1, httpmock.GetTotalCallCount(), "no retry")
	assert.Equal(t, []string{"process:upstream_error"}, obs.outcomes)
}

func TestProcess_MissingID(t *testing.T) {
	c, _ := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/process",
		httpmock.NewStringResponder(http.StatusOK, `{"status":"ok"}`))

	_, err := c.Process(context.Background(), ProcessRequest{File: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestAnalyze(t *testing.T) {
	c, _ := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/analyze",
		func(req *http.Request) (*http.Response, error) {
			body, _ := io.ReadAll(req.Body)
			assert.JSONEq(t, `{"email":"a@b.com","video_id":"v1","reference_id":"r1"}`, string(body))
			assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
			return httpmock.NewStringResponse(http.StatusOK, `{"analysis_id":"abc","success":true}`), nil
		})

	resp, err := c.Analyze(context.Background(), AnalyzeRequest{Email: "a@b.com", VideoID: "v1", ReferenceID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.AnalysisID)
	assert.Equal(t, true, resp.Raw["success"])
}

func TestAnalyze_LargeResponse(t *testing.T) {
	c, obs := newTestClient(t)
	frame := `{"frame_index":1,"keypoints":[` + strings.TrimSuffix(strings.Repeat(`[412.5,233.25,0.98],`, 17), ",") + `]}`
	frames := strings.TrimSuffix(strings.Repeat(frame+",", 600), ",")
	body := `{"analysis_id":"abc","frame_analysis":[` + frames + `]}`
	require.Greater(t, len(body), maxUpstreamBody)
	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/analyze",
		httpmock.NewStringResponder(http.StatusOK, body))

	resp, err := c.Analyze(context.Background(), AnalyzeRequest{VideoID: "v"})
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.AnalysisID)
	assert.Len(t, resp.Raw["frame_analysis"], 600)
	assert.Equal(t, []string{"analyze:success"}, obs.outcomes)
}

func TestAnalyze_InvalidResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing analysis_id", `{"success":true}`},
		{"empty analysis_id", `{"analysis_id":""}`},
		{"not json", `<html>oops</html>`},
		{"json array", `[1,2]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t)
			httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/analyze",
				httpmock.NewStringResponder(http.StatusOK, tt.body))

			_, err := c.Analyze(context.Background(), AnalyzeRequest{VideoID: "v"})
			assert.ErrorIs(t, err, ErrInvalidResponse)
		})
	}
}

func TestAnalyze_NetworkError(t *testing.T) {
	c, obs := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/analyze",
		httpmock.NewErrorResponder(errors.New("connection refused")))

	_, err := c.Analyze(context.Background(), AnalyzeRequest{VideoID: "v"})
	require.Error(t, err)
	var upstream *UpstreamError
	assert.False(t, errors.As(err, &upstream))
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, []string{"analyze:network_error"}, obs.outcomes)
}
