package api

import (
	"alcyxob/motion-coach/internal/service"
	"alcyxob/motion-coach/internal/storage"
	"alcyxob/motion-coach/internal/validation"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// fileFields are the multipart field names accepted for an upload, in order.
var fileFields = []string{"file", "files"}

// MediaHandler serves uploads, processed data and analyses.
type MediaHandler struct {
	ingestionService service.IngestionService
	mediaService     service.MediaService
	analysisService  service.AnalysisService
	imageService     service.ImageService
	storage          storage.FileStorage
}

func NewMediaHandler(
	ingestionService service.IngestionService,
	mediaService service.MediaService,
	analysisService service.AnalysisService,
	imageService service.ImageService,
	fileStorage storage.FileStorage,
) *MediaHandler {
	return &MediaHandler{
		ingestionService: ingestionService,
		mediaService:     mediaService,
		analysisService:  analysisService,
		imageService:     imageService,
		storage:          fileStorage,
	}
}

// LimitBody caps the request body. Reads past the limit fail with *http.MaxBytesError.
func LimitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// UploadProcessedData godoc
// @Summary Upload an image or video for analysis
// @Description Stores the file, forwards it to the AI service and records it as processed data.
// @Tags ProcessedData
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Image or video (also accepted as files)"
// @Param exercise_id formData string true "Exercise ObjectID Hex"
// @Param role formData string false "pro, client (default) or ia"
// @Param is_reference formData bool false "Reference performance"
// @Param X-Video-Duration header number false "Declared duration in seconds"
// @Param Idempotency-Key header string false "Replays the first result for the same key"
// @Success 201 {object} service.IngestResult
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 409 {object} gin.H "Same Idempotency-Key in flight"
// @Failure 413 {object} gin.H "Upload too large"
// @Router /processed-data [post]
func (h *MediaHandler) UploadProcessedData(c *gin.Context) {
	subject, ok := mustSubject(c)
	if !ok {
		return
	}
	upload, form, ok := readUpload(c)
	if !ok {
		return
	}
	defer upload.close()

	isReference, err := formBool(form, "is_reference")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "is_reference must be a boolean")
		return
	}

	result, err := h.ingestionService.Ingest(c.Request.Context(), subject, service.IngestInput{
		ExerciseID:     formValue(form, "exercise_id"),
		Role:           formValue(form, "role"),
		IsReference:    isReference,
		Duration:       c.GetHeader("X-Video-Duration"),
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
		Upload:         upload.FileUpload,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if result.Replayed {
		c.Header("Idempotent-Replayed", "true")
	}
	c.JSON(http.StatusCreated, result)
}

// ListProcessedData godoc
// @Summary List processed data
// @Tags ProcessedData
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Max records (default 50, max 200)"
// @Param range query string false "all, 3months, 1month, 1week or YYYY-MM-DD"
// @Param withReference query bool false "Also include reference media"
// @Success 200 {array} service.ProcessedDataView
// @Router /processed-data [get]
func (h *MediaHandler) ListProcessedData(c *gin.Context) {
	subject, ok := mustSubject(c)
	if !ok {
		return
	}
	withReference, err := parseBool(c.Query("withReference"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "withReference must be a boolean")
		return
	}
	views, err := h.mediaService.ListProcessedData(c.Request.Context(), subject, service.MediaQuery{
		Limit:         c.Query("limit"),
		Range:         c.Query("range"),
		WithReference: withReference,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// GetProcessedData godoc
// @Summary Get one processed data record
// @Tags ProcessedData
// @Produce json
// @Security BearerAuth
// @Param id path string true "ProcessedData ObjectID Hex"
// @Success 200 {object} service.ProcessedDataView
// @Failure 404 {object} gin.H "Not found"
// @Router /processed-data/{id} [get]
func (h *MediaHandler) GetProcessedData(c *gin.Context) {
	subject, ok := mustSubject(c)
	if !ok {
		return
	}
	view, err := h.mediaService.GetProcessedData(c.Request.Context(), subject, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetFrames godoc
// @Summary Canonical frames of a record
// @Description Frames of the latest analysis, or the frames embedded in the record.
// @Tags ProcessedData
// @Produce json
// @Security BearerAuth
// @Param id path string true "ProcessedData ObjectID Hex"
// @Success 200 {object} service.FramesView
// @Router /processed-data/{id}/frames [get]
func (h *MediaHandler) GetFrames(c *gin.Context) {
	subject, ok := mustSubject(c)
	if !ok {
		return
	}
	view, err := h.mediaService.GetFrames(c.Request.Context(), subject, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RequestAnalysis godoc
// @Summary Compare a video against a reference
// @Tags Analysis
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body validation.AnalyzeInput true "video_id, reference_id and optional email"
// @Success 200 {object} service.AnalyzeResult
// @Failure 400 {object} gin.H "Invalid input or invalid AI response"
// @Failure 404 {object} gin.H "Unknown video or reference"
// @Failure 409 {object} gin.H "Analysis already in progress"
// @Router /processed-data/analyze [post]
func (h *MediaHandler) RequestAnalysis(c *gin.Context) {
	subject, ok := mustSubject(c)
	if !ok {
		return
	}
	var req validation.AnalyzeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, err := h.analysisService.RequestAnalysis(c.Request.Context(), subject, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetAnalysis godoc
// @Summary Latest analysis of a video
// @Tags Analysis
// @Produce json
// @Security BearerAuth
// @Param video_id path string true "ProcessedData ObjectID Hex"
// @Success 200 {object} domain.AnalysisResult
// @Failure 404 {object} gin.H "No analysis yet"
// @Router /analysis/{video_id} [get]
func (h *MediaHandler) GetAnalysis(c *gin.Context) {
	subject, ok := mustSubject(c)
	if !ok {
		return
	}
	result, err := h.analysisService.GetAnalysis(c.Request.Context(), subject, c.Param("video_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// UploadImage godoc
// @Summary Upload an image
// @Tags Images
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Image"
// @Success 201 {object} domain.Image
// @Failure 400 {object} gin.H "Not an image"
// @Router /data/images [post]
func (h *MediaHandler) UploadImage(c *gin.Context) {
	subject, ok := mustSubject(c)
	if !ok {
		return
	}
	upload, _, ok := readUpload(c)
	if !ok {
		return
	}
	defer upload.close()

	image, err := h.imageService.UploadImage(c.Request.Context(), subject, upload.FileUpload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, image)
}

// ListImages godoc
// @Summary List images
// @Description Own images, or every image for an admin.
// @Tags Images
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.Image
// @Router /data/images [get]
func (h *MediaHandler) ListImages(c *gin.Context) {
	subject, ok := mustSubject(c)
	if !ok {
		return
	}
	images, err := h.imageService.ListImages(c.Request.Context(), subject)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, images)
}

// ServeUpload streams a stored file. Public, like the URLs handed to the AI service.
func (h *MediaHandler) ServeUpload(c *gin.Context) {
	rc, info, err := h.storage.Open(c.Request.Context(), c.Param("filename"))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			abortWithError(c, http.StatusNotFound, "file not found")
			return
		}
		respondError(c, err)
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, info.Size, info.ContentType, rc, map[string]string{
		"Cache-Control": "private, max-age=86400",
	})
}

// --- multipart helpers ---

type openedUpload struct {
	service.FileUpload
	file multipart.File
}

func (u *openedUpload) close() {
	if u.file != nil {
		u.file.Close()
	}
}

// readUpload parses the multipart form and opens the first file found.
func readUpload(c *gin.Context) (*openedUpload, *multipart.Form, bool) {
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, err)
		} else {
			abortWithError(c, http.StatusBadRequest, "invalid multipart form")
		}
		return nil, nil, false
	}

	var header *multipart.FileHeader
	for _, field := range fileFields {
		if files := form.File[field]; len(files) > 0 {
			header = files[0]
			break
		}
	}
	if header == nil {
		respondError(c, service.ErrFileRequired)
		return nil, nil, false
	}

	f, err := header.Open()
	if err != nil {
		respondError(c, err)
		return nil, nil, false
	}
	return &openedUpload{
		FileUpload: service.FileUpload{
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			File:        f,
		},
		file: f,
	}, form, true
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}

func formBool(form *multipart.Form, key string) (bool, error) {
	return parseBool(formValue(form, key))
}

func parseBool(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(strings.ToLower(raw))
}
