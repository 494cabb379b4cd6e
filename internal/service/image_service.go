package service

import (
	"alcyxob/motion-coach/internal/domain"
	"alcyxob/motion-coach/internal/logger"
	"alcyxob/motion-coach/internal/policy"
	"alcyxob/motion-coach/internal/repository"
	"alcyxob/motion-coach/internal/storage"
	"context"
	"fmt"
	"time"
)

// ImageService stores coach images in the media store.
type ImageService interface {
	UploadImage(ctx context.Context, subject policy.Subject, upload FileUpload) (*domain.Image, error)
	ListImages(ctx context.Context, subject policy.Subject) ([]domain.Image, error)
}

type imageService struct {
	imageRepo repository.ImageRepository
	storage   storage.FileStorage
	baseURL   string
	log       *logger.Logger
}

func NewImageService(imageRepo repository.ImageRepository, fileStorage storage.FileStorage, baseURL string, log *logger.Logger) ImageService {
	return &imageService{
		imageRepo: imageRepo,
		storage:   fileStorage,
		baseURL:   baseURL,
		log:       log,
	}
}

func (s *imageService) UploadImage(ctx context.Context, subject policy.Subject, upload FileUpload) (*domain.Image, error) {
	if !policy.Can(subject, policy.ImageWrite, policy.Resource{}) {
		return nil, ErrForbidden
	}
	media, err := sniffUpload(upload)
	if err != nil {
		return nil, err
	}
	if media.Type != domain.MediaTypeImage {
		return nil, ErrImageRequired
	}

	key := newStorageKey(time.Now(), media.Extension)
	size, err := s.storage.Save(ctx, key, media.MIME, upload.File)
	if err != nil {
		return nil, fmt.Errorf("save image: %w", err)
	}

	image := &domain.Image{
		OwnerID:     subject.UserID,
		FileName:    upload.FileName,
		StorageKey:  key,
		URL:         publicURL(s.baseURL, key),
		ContentType: media.MIME,
		Size:        size,
	}
	if _, err := s.imageRepo.Create(ctx, image); err != nil {
		cctx, cancel := cleanupContext(ctx)
		defer cancel()
		if derr := s.storage.Delete(cctx, key); derr != nil {
			s.log.Error("failed to delete orphaned image", "key", key, "error", derr)
		}
		return nil, err
	}
	return image, nil
}

// ListImages returns the caller's images, or every image for an admin.
func (s *imageService) ListImages(ctx context.Context, subject policy.Subject) ([]domain.Image, error) {
	if subject.IsAdmin() {
		return s.imageRepo.List(ctx, nil)
	}
	return s.imageRepo.List(ctx, &subject.UserID)
}
