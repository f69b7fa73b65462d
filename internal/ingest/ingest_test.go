package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/your-org/speechflow/internal/pipeline"
	"github.com/your-org/speechflow/internal/stage"
	"github.com/your-org/speechflow/pkg/storage/objectstore"
)

var (
	defaultPrefixes = []string{"results/", "locks/", "chunks/"}
	defaultSuffixes = []string{"_merged.mp3", "_tts.txt", "/merged.mp3", "/transcript.srt"}
)

func newFilter() *Filter {
	return NewFilter(defaultPrefixes, defaultSuffixes)
}

func notificationEvent(t *testing.T, body string) pipeline.Event {
	t.Helper()
	return pipeline.Event{ID: "evt-1", Data: json.RawMessage(body)}
}

func TestFilterSuppressesArtifacts(t *testing.T) {
	f := newFilter()
	keys := []string{
		"results/demo/chunks/chunk_1.mp3",
		"results/demo/transcript.srt",
		"results%2Fdemo%2Fmerged.mp3",
		"locks/demo.lock",
		"chunks/chunk_3.mp3",
		"/results/demo/merged.mp3",
		"talk_merged.mp3",
		"talk_tts.txt",
		"uploads/demo/merged.mp3",
	}
	for _, bucket := range []string{"audio", "other"} {
		for _, key := range keys {
			_, accepted, err := f.Apply(bucket, key)
			if err != nil {
				t.Fatalf("Apply(%q): %v", key, err)
			}
			if accepted {
				t.Fatalf("expected %q in bucket %q to be suppressed", key, bucket)
			}
		}
	}
}

func TestFilterDecodesKey(t *testing.T) {
	cases := map[string]string{
		"demo.mp3":                "demo.mp3",
		"my+talk.mp3":             "my talk.mp3",
		"folder%2Fmy%20talk.mp3":  "folder/my talk.mp3",
		"podcasts/episode_01.wav": "podcasts/episode_01.wav",
	}
	f := newFilter()
	for raw, want := range cases {
		src, accepted, err := f.Apply("audio", raw)
		if err != nil {
			t.Fatalf("Apply(%q): %v", raw, err)
		}
		if !accepted || src.Key != want || src.Bucket != "audio" {
			t.Fatalf("Apply(%q) = %+v accepted=%v, want key %q", raw, src, accepted, want)
		}
	}
}

func TestFilterRejectsBadEncoding(t *testing.T) {
	if _, _, err := newFilter().Apply("audio", "bad%zzkey.mp3"); !pipeline.IsKind(err, pipeline.KindMalformedInput) {
		t.Fatalf("expected malformed_input, got %v", err)
	}
}

func TestHandlerForwardsAcceptedRecords(t *testing.T) {
	h := NewHandler(newFilter(), "speechflow-ingest", zap.NewNop())
	body := `{"EventName":"s3:ObjectCreated:Put","Records":[
		{"s3":{"bucket":{"name":"audio"},"object":{"key":"demo.mp3"}}},
		{"s3":{"bucket":{"name":"audio"},"object":{"key":"results%2Fdemo%2Fmerged.mp3"}}}
	]}`

	res, err := h.Handle(context.Background(), notificationEvent(t, body))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(res.Next) != 1 || res.Suppressed != 1 {
		t.Fatalf("expected 1 forwarded and 1 suppressed, got %d/%d", len(res.Next), res.Suppressed)
	}
	next := res.Next[0]
	if next.Type != pipeline.TypeSourceObjectCreated || next.SourceIdentifier != "demo.mp3" || next.Source != "speechflow-ingest" {
		t.Fatalf("unexpected event %+v", next)
	}
	src, err := next.SourceObject()
	if err != nil {
		t.Fatalf("SourceObject: %v", err)
	}
	if src != (pipeline.SourceObject{Bucket: "audio", Key: "demo.mp3"}) {
		t.Fatalf("unexpected payload %+v", src)
	}
}

func TestHandlerRejectsMalformedNotification(t *testing.T) {
	h := NewHandler(newFilter(), "speechflow-ingest", zap.NewNop())
	for name, body := range map[string]string{
		"not json":         `not json`,
		"no records":       `{"EventName":"s3:ObjectCreated:Put"}`,
		"missing bucket":   `{"Records":[{"s3":{"object":{"key":"demo.mp3"}}}]}`,
		"records not list": `{"Records":{"s3":{}}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := h.Handle(context.Background(), notificationEvent(t, body))
			if !pipeline.IsKind(err, pipeline.KindMalformedInput) {
				t.Fatalf("expected malformed_input, got %v", err)
			}
		})
	}
}

func TestHandlerEmptyRecords(t *testing.T) {
	h := NewHandler(newFilter(), "speechflow-ingest", zap.NewNop())
	res, err := h.Handle(context.Background(), notificationEvent(t, `{"Records":[]}`))
	if err != nil || len(res.Next) != 0 {
		t.Fatalf("expected no events and no error, got %v %v", res.Next, err)
	}
}

type recordingAnnouncer struct {
	events []pipeline.Event
	h      *Handler
}

func (a *recordingAnnouncer) Process(ctx context.Context, ev pipeline.Event) (stage.Result, error) {
	a.events = append(a.events, ev)
	res, err := a.h.Handle(ctx, ev)
	res.Emitted = len(res.Next)
	return res, err
}

func TestUploadStoresAndAnnounces(t *testing.T) {
	store := objectstore.NewMemory()
	announcer := &recordingAnnouncer{h: NewHandler(newFilter(), Name, zap.NewNop())}
	u := NewUploader(UploaderParams{
		Store:     store,
		Bucket:    "audio",
		Filter:    newFilter(),
		Announcer: announcer,
		Logger:    zap.NewNop(),
	})

	data := []byte("fake-mp3")
	res, err := u.ProcessUpload(context.Background(), bytes.NewReader(data), int64(len(data)), UploadOptions{
		Filename: "C:\\Users\\me\\my talk.mp3",
	})
	if err != nil {
		t.Fatalf("ProcessUpload: %v", err)
	}
	if res.ObjectKey != "my talk.mp3" || res.Emitted != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(res.Checksum) != 64 {
		t.Fatalf("expected sha256 checksum, got %q", res.Checksum)
	}
	stored, err := store.Get(context.Background(), "audio", "my talk.mp3")
	if err != nil || string(stored) != "fake-mp3" {
		t.Fatalf("expected stored object, got %q %v", stored, err)
	}
	if len(announcer.events) != 1 {
		t.Fatalf("expected one announcement, got %d", len(announcer.events))
	}
}

func TestUploadRejectsReservedKey(t *testing.T) {
	u := NewUploader(UploaderParams{Store: objectstore.NewMemory(), Bucket: "audio", Filter: newFilter(), Logger: zap.NewNop()})
	_, err := u.ProcessUpload(context.Background(), strings.NewReader("x"), 1, UploadOptions{Key: "results/demo/merged.mp3"})
	if !pipeline.IsKind(err, pipeline.KindMalformedInput) {
		t.Fatalf("expected malformed_input, got %v", err)
	}
}

func TestUploadEndpoint(t *testing.T) {
	store := objectstore.NewMemory()
	u := NewUploader(UploaderParams{Store: store, Bucket: "audio", Filter: newFilter(), Logger: zap.NewNop()})
	r := chi.NewRouter()
	UploadRoutes(u, zap.NewNop(), 1<<20, 1<<20)(r)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "demo.mp3")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = fw.Write([]byte("fake-mp3"))
	_ = mw.WriteField("speaker", "Ada")
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	if ok, _ := store.Exists(context.Background(), "audio", "demo.mp3"); !ok {
		t.Fatal("expected uploaded object in store")
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/uploads", strings.NewReader("plain")))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without multipart body, got %d", rr.Code)
	}
}

func TestProcessEndpoint(t *testing.T) {
	announcer := &recordingAnnouncer{h: NewHandler(newFilter(), Name, zap.NewNop())}
	r := chi.NewRouter()
	ProcessRoutes("audio", announcer, zap.NewNop())(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/process?input=talks%2Fmy+talk.mp3", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(announcer.events) != 1 {
		t.Fatalf("expected one announcement, got %d", len(announcer.events))
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["object_key"] != "talks/my talk.mp3" || resp["emitted"] != float64(1) {
		t.Fatalf("unexpected response %v", resp)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/process", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without input, got %d", rr.Code)
	}
}
