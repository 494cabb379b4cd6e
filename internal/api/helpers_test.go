package api

import (
	"alcyxob/motion-coach/internal/aiclient"
	"alcyxob/motion-coach/internal/config"
	"alcyxob/motion-coach/internal/domain"
	"alcyxob/motion-coach/internal/logger"
	"alcyxob/motion-coach/internal/metrics"
	"alcyxob/motion-coach/internal/repository/memory"
	"alcyxob/motion-coach/internal/service"
	"alcyxob/motion-coach/internal/storage"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "api-test-secret"
	testAIURL  = "http://ai.test"
)

var (
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00"), make([]byte, 64)...)
	mp4Bytes = append([]byte("\x00\x00\x00\x20ftypisom\x00\x00\x02\x00isomiso2avc1mp41"), make([]byte, 256)...)
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router  *gin.Engine
	store   *memory.Store
	auth    service.AuthService
	dir     string
	metrics *metrics.Metrics
}

type serverOption func(*RouterConfig)

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	log := logger.Nop()
	store := memory.NewStore()
	dir := t.TempDir()
	files, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	ai := aiclient.New(config.AIConfig{URL: testAIURL, Key: "k", Timeout: 5 * time.Second}, aiclient.WithObserver(m))
	httpmock.ActivateNonDefault(ai.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	auth := service.NewAuthService(store.Users(), testSecret, time.Hour, false)
	cfg := RouterConfig{
		JWTSecret:        testSecret,
		MaxUploadBytes:   1 << 20,
		AllowedOrigins:   []string{"http://localhost:3000"},
		Log:              log,
		Metrics:          m,
		AuthService:      auth,
		ExerciseService:  service.NewExerciseService(store.Exercises()),
		ClientService:    service.NewClientService(store.Clients()),
		ImageService:     service.NewImageService(store.Images(), files, "http://api.test", log),
		IngestionService: service.NewIngestionService(store.Exercises(), store.Media(), files, ai, service.IngestionOptions{BaseURL: "http://api.test", MaxVideoSeconds: 30, IdempotencyTTL: time.Minute}, m, log),
		MediaService:     service.NewMediaService(store.Media(), store.Exercises(), store.Analyses(), log),
		AnalysisService:  service.NewAnalysisService(store.Media(), store.Exercises(), store.Analyses(), store.Users(), ai, 10*time.Minute, m, log),
		Storage:          files,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	router := gin.New()
	SetupRoutes(router, cfg)
	return &testServer{router: router, store: store, auth: auth, dir: dir, metrics: m}
}

// user creates an account directly in the store and returns it with a valid token.
func (s *testServer) user(t *testing.T, email string, role domain.Role) (*domain.User, string) {
	t.Helper()
	u := &domain.User{Email: email, FirstName: "Test", LastName: "User", Role: role}
	_, err := s.store.Users().Create(context.Background(), u)
	require.NoError(t, err)
	token, err := s.auth.IssueToken(u)
	require.NoError(t, err)
	return u, token
}

func (s *testServer) exercise(t *testing.T, name string) *domain.Exercise {
	t.Helper()
	e := &domain.Exercise{Name: name, Category: "shooting", Difficulty: domain.DifficultyBeginner}
	_, err := s.store.Exercises().Create(context.Background(), e)
	require.NoError(t, err)
	return e
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(t *testing.T, method, path, token string, body interface{}) *http.Request {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

type formFile struct {
	field, name, contentType string
	data                     []byte
}

func multipartRequest(t *testing.T, path, token string, fields map[string]string, file *formFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.field, file.name))
		h.Set("Content-Type", file.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

// aiProcessOK answers /process with a fresh ObjectID hex.
func aiProcessOK(id string) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{"id": id, "status": "processed"})
	}
}
