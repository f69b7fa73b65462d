package ingest

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/speechflow/internal/pipeline"
	"github.com/your-org/speechflow/internal/stage"
	"github.com/your-org/speechflow/pkg/storage/objectstore"
)

// Announcer runs the filter stage on a synthetic notification.
type Announcer interface {
	Process(ctx context.Context, ev pipeline.Event) (stage.Result, error)
}

// Uploader stores source media received over HTTP. When an Announcer is set
// the stored object is filtered and forwarded right away; otherwise the
// store's own bucket notification starts the pipeline.
type Uploader struct {
	store     objectstore.Client
	bucket    string
	filter    *Filter
	announcer Announcer
	logger    *zap.Logger
}

type UploaderParams struct {
	Store     objectstore.Client
	Bucket    string
	Filter    *Filter
	Announcer Announcer
	Logger    *zap.Logger
}

// UploadOptions captures metadata about the upload.
type UploadOptions struct {
	Filename    string
	Key         string
	ContentType string
	Metadata    map[string]string
}

type UploadResult struct {
	Bucket     string
	ObjectKey  string
	Checksum   string
	Size       int64
	Emitted    int
	UploadedAt time.Time
}

func NewUploader(p UploaderParams) *Uploader {
	return &Uploader{
		store:     p.Store,
		bucket:    p.Bucket,
		filter:    p.Filter,
		announcer: p.Announcer,
		logger:    p.Logger,
	}
}

// ProcessUpload streams the file to the object store under its key and, when
// announcing, runs it through the filter.
func (u *Uploader) ProcessUpload(ctx context.Context, reader io.Reader, size int64, opts UploadOptions) (*UploadResult, error) {
	if size <= 0 {
		return nil, pipeline.Errorf(pipeline.KindMalformedInput, "upload", "invalid file size: %d", size)
	}
	key, err := uploadKey(opts)
	if err != nil {
		return nil, err
	}
	if u.filter.Excluded(key) {
		return nil, pipeline.Errorf(pipeline.KindMalformedInput, "upload", "key %q is reserved for pipeline artifacts", key)
	}

	hasher := sha256.New()
	tee := io.TeeReader(reader, hasher)
	buffered := bufio.NewReaderSize(tee, 64*1024)

	metadata := map[string]string{
		"original_filename": opts.Filename,
	}
	for k, v := range opts.Metadata {
		metadata[k] = v
	}

	if err := u.store.Put(ctx, u.bucket, key, buffered, size, objectstore.PutOptions{
		ContentType: opts.ContentType,
		Metadata:    metadata,
	}); err != nil {
		return nil, pipeline.Wrap(pipeline.KindTransientIO, "upload", fmt.Errorf("put object: %w", err))
	}

	result := &UploadResult{
		Bucket:     u.bucket,
		ObjectKey:  key,
		Checksum:   hex.EncodeToString(hasher.Sum(nil)),
		Size:       size,
		UploadedAt: time.Now().UTC(),
	}
	u.logger.Info("source object stored",
		zap.String("bucket", u.bucket),
		zap.String("key", key),
		zap.String("checksum", result.Checksum),
		zap.Int64("size_bytes", size),
	)

	if u.announcer == nil {
		return result, nil
	}
	ev, err := pipeline.NewEvent(uploadEventType, Name, key, NewNotification(u.bucket, key))
	if err != nil {
		return nil, err
	}
	res, err := u.announcer.Process(ctx, ev)
	if err != nil {
		return nil, err
	}
	result.Emitted = res.Emitted
	return result, nil
}

// uploadEventType labels synthetic notifications raised by direct uploads.
const uploadEventType pipeline.EventType = "s3:ObjectCreated:Put"

func uploadKey(opts UploadOptions) (string, error) {
	key := strings.TrimLeft(strings.TrimSpace(opts.Key), "/")
	if key == "" {
		key = path.Base(strings.ReplaceAll(opts.Filename, "\\", "/"))
	}
	if key == "" || key == "." || key == "/" {
		return "", pipeline.Errorf(pipeline.KindMalformedInput, "upload", "a file name or key is required")
	}
	if strings.Contains(key, "..") {
		return "", pipeline.Errorf(pipeline.KindMalformedInput, "upload", "invalid key %q", key)
	}
	return key, nil
}
