package ingest

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/your-org/speechflow/internal/pipeline"
	"github.com/your-org/speechflow/internal/stage"
)

// NotificationPath is where MinIO webhook targets post events.
const NotificationPath = "/minio-event"

// UploadRoutes mounts POST /api/v1/uploads.
func UploadRoutes(u *Uploader, logger *zap.Logger, maxSizeBytes, formMemBytes int64) func(chi.Router) {
	h := &uploadHandler{
		uploader:     u,
		logger:       logger,
		maxSizeBytes: maxSizeBytes,
		formMemBytes: formMemBytes,
	}
	return func(r chi.Router) {
		r.Post("/api/v1/uploads", h.handleUpload)
	}
}

type uploadHandler struct {
	uploader     *Uploader
	logger       *zap.Logger
	maxSizeBytes int64
	formMemBytes int64
}

func (h *uploadHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > 0 && r.ContentLength > h.maxSizeBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	if err := r.ParseMultipartForm(h.formMemBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxSizeBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file exceeds max size limit")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	metadata := map[string]string{}
	for key, values := range r.MultipartForm.Value {
		if key == "file" || key == "key" || len(values) == 0 {
			continue
		}
		metadata[strings.ToLower(key)] = values[len(values)-1]
	}

	result, err := h.uploader.ProcessUpload(r.Context(), file, header.Size, UploadOptions{
		Filename:    header.Filename,
		Key:         r.FormValue("key"),
		ContentType: contentType,
		Metadata:    metadata,
	})
	if err != nil {
		h.logger.Error("upload failed", zap.String("kind", string(pipeline.KindOf(err))), zap.Error(err))
		stage.WriteError(w, err)
		return
	}

	stage.WriteJSON(w, http.StatusAccepted, map[string]any{
		"bucket":      result.Bucket,
		"object_key":  result.ObjectKey,
		"checksum":    result.Checksum,
		"size_bytes":  result.Size,
		"emitted":     result.Emitted,
		"uploaded_at": result.UploadedAt,
	})
}

// ProcessRoutes mounts POST /process?input=<key>, which runs an object
// already in bucket through the pipeline as if the store had announced it.
func ProcessRoutes(bucket string, announcer Announcer, logger *zap.Logger) func(chi.Router) {
	return func(r chi.Router) {
		r.Post("/process", func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimLeft(strings.TrimSpace(r.URL.Query().Get("input")), "/")
			if key == "" {
				writeError(w, http.StatusBadRequest, "input query parameter is required")
				return
			}
			ev, err := pipeline.NewEvent(uploadEventType, Name, key, NewNotification(bucket, key))
			if err != nil {
				stage.WriteError(w, err)
				return
			}
			res, err := announcer.Process(r.Context(), ev)
			if err != nil {
				logger.Error("process failed", zap.String("key", key), zap.String("kind", string(pipeline.KindOf(err))), zap.Error(err))
				stage.WriteError(w, err)
				return
			}
			stage.WriteJSON(w, http.StatusOK, map[string]any{
				"message":    "Processing complete",
				"bucket":     bucket,
				"object_key": key,
				"emitted":    res.Emitted,
				"suppressed": res.Suppressed,
			})
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	stage.WriteJSON(w, status, map[string]string{
		"error": msg,
	})
}
