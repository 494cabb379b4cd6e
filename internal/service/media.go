package service

import (
	"alcyxob/motion-coach/internal/domain"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// --- Error Definitions ---
var (
	ErrFileRequired      = invalidInput("a file is required")
	ErrUnsupportedMedia  = invalidInput("only image and video files are allowed")
	ErrImageRequired     = invalidInput("only image files are allowed")
	ErrMediaTypeMismatch = invalidInput("file content does not match its declared type")
)

// Recorder receives outcome counters. *metrics.Metrics satisfies it.
type Recorder interface {
	RecordIngestion(mediaType, outcome string)
	RecordAnalysis(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordIngestion(string, string) {}
func (nopRecorder) RecordAnalysis(string)          {}

// FileUpload is one file received from a multipart request.
type FileUpload struct {
	FileName    string
	ContentType string // As declared by the client
	Size        int64
	File        io.ReadSeeker
}

// sniffedMedia is what the bytes of an upload turned out to be.
type sniffedMedia struct {
	MIME      string
	Extension string
	Type      domain.MediaType
}

// sniffUpload checks that the declared and detected types agree on image or video and
// rewinds the file.
func sniffUpload(f FileUpload) (sniffedMedia, error) {
	if f.File == nil {
		return sniffedMedia{}, ErrFileRequired
	}
	declared, ok := domain.MediaTypeFromMIME(f.ContentType)
	if !ok {
		return sniffedMedia{}, ErrUnsupportedMedia
	}

	mt, err := mimetype.DetectReader(f.File)
	if err != nil {
		return sniffedMedia{}, fmt.Errorf("detect content type: %w", err)
	}
	if _, err := f.File.Seek(0, io.SeekStart); err != nil {
		return sniffedMedia{}, fmt.Errorf("rewind upload: %w", err)
	}

	detected, ok := domain.MediaTypeFromMIME(mt.String())
	if !ok {
		return sniffedMedia{}, ErrUnsupportedMedia
	}
	if detected != declared {
		return sniffedMedia{}, ErrMediaTypeMismatch
	}

	ext := mt.Extension()
	if ext == "" {
		ext = safeExtension(f.FileName)
	}
	return sniffedMedia{MIME: mediaTypeOnly(mt.String()), Extension: ext, Type: detected}, nil
}

// safeExtension returns the lower-cased extension of a client file name, or "" when it
// holds anything but ASCII letters and digits.
func safeExtension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

// mediaTypeOnly drops parameters such as "; charset=utf-8".
func mediaTypeOnly(mime string) string {
	if i := strings.Index(mime, ";"); i >= 0 {
		return strings.TrimSpace(mime[:i])
	}
	return mime
}

// newStorageKey returns "media-<unixmillis>-<random><ext>".
func newStorageKey(now time.Time, ext string) string {
	return fmt.Sprintf("media-%d-%d%s", now.UnixMilli(), uuid.New().ID(), ext)
}

// publicURL is where GET /uploads serves key.
func publicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/uploads/" + key
}

// cleanupContext outlives a cancelled request so compensating deletes still run.
func cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
}
