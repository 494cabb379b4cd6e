package service

import (
	"alcyxob/motion-coach/internal/aiclient"
	"alcyxob/motion-coach/internal/domain"
	"alcyxob/motion-coach/internal/policy"
	"alcyxob/motion-coach/internal/repository/memory"
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00"), make([]byte, 64)...)
	mp4Bytes = append([]byte("\x00\x00\x00\x20ftypisom\x00\x00\x02\x00isomiso2avc1mp41"), make([]byte, 256)...)
)

func userSubject() policy.Subject {
	return policy.Subject{UserID: primitive.NewObjectID(), Role: domain.RoleUser}
}

func adminSubject() policy.Subject {
	return policy.Subject{UserID: primitive.NewObjectID(), Role: domain.RoleAdmin}
}

func upload(name, contentType string, data []byte) FileUpload {
	return FileUpload{FileName: name, ContentType: contentType, Size: int64(len(data)), File: bytes.NewReader(data)}
}

func seedExercise(t *testing.T, store *memory.Store, name string) *domain.Exercise {
	t.Helper()
	e := &domain.Exercise{Name: name, Category: "shooting", Difficulty: domain.DifficultyBeginner}
	_, err := store.Exercises().Create(context.Background(), e)
	require.NoError(t, err)
	return e
}

// fakeAI records calls and answers with the configured values.
type fakeAI struct {
	mu sync.Mutex

	processID  string
	processErr error
	// block, when set, holds Process until it is closed. started is closed on entry.
	block   chan struct{}
	started chan struct{}

	analysisID string
	analyzeErr error

	processCalls []aiclient.ProcessRequest
	processFiles [][]byte
	analyzeCalls []aiclient.AnalyzeRequest
}

func (f *fakeAI) Process(ctx context.Context, req aiclient.ProcessRequest) (*aiclient.ProcessResponse, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}
	data, err := io.ReadAll(req.File)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.processCalls = append(f.processCalls, req)
	f.processFiles = append(f.processFiles, data)
	if f.processErr != nil {
		return nil, f.processErr
	}
	return &aiclient.ProcessResponse{ID: f.processID, Raw: map[string]interface{}{"id": f.processID}}, nil
}

func (f *fakeAI) Analyze(ctx context.Context, req aiclient.AnalyzeRequest) (*aiclient.AnalyzeResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyzeCalls = append(f.analyzeCalls, req)
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	return &aiclient.AnalyzeResponse{
		AnalysisID: f.analysisID,
		Raw:        map[string]interface{}{"analysis_id": f.analysisID},
	}, nil
}

func (f *fakeAI) processCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.processCalls)
}

// countingRecorder keeps every outcome it is given.
type countingRecorder struct {
	mu         sync.Mutex
	ingestions []string
	analyses   []string
}

func (r *countingRecorder) RecordIngestion(mediaType, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ingestions = append(r.ingestions, mediaType+":"+outcome)
}

func (r *countingRecorder) RecordAnalysis(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyses = append(r.analyses, outcome)
}
