package stage

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/your-org/speechflow/internal/pipeline"
)

func newTestHandler(h Handler, opts HTTPOptions) http.Handler {
	r := NewRunner(RunnerParams{Handler: h, Emitter: &recordingEmitter{}, Logger: zap.NewNop()})
	return NewHTTPHandler(r, zap.NewNop(), opts).Router()
}

func binaryRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(pipeline.HeaderSpecVersion, pipeline.SpecVersion)
	req.Header.Set(pipeline.HeaderType, string(pipeline.TypeSegmentsReady))
	req.Header.Set(pipeline.HeaderSource, "test")
	req.Header.Set(pipeline.HeaderID, "evt-1")
	return req
}

func TestLiveness(t *testing.T) {
	router := newTestHandler(&fakeHandler{}, HTTPOptions{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "fake service is running") {
		t.Fatalf("unexpected liveness body %q", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", rr.Code)
	}
}

func TestEventSuccess(t *testing.T) {
	h := &fakeHandler{res: Result{Artifacts: []string{"results/demo/transcript.srt"}}}
	router := newTestHandler(h, HTTPOptions{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, binaryRequest(`{"bucket":"audio"}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Message   string   `json:"message"`
		Artifacts []string `json:"artifacts"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Message != "Processing complete" || len(body.Artifacts) != 1 {
		t.Fatalf("unexpected response %+v", body)
	}
}

func TestMalformedEventIsClientError(t *testing.T) {
	h := &fakeHandler{}
	router := newTestHandler(h, HTTPOptions{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, binaryRequest(`not json`))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if h.calls != 0 {
		t.Fatal("expected handler not to run on malformed input")
	}
	if !strings.Contains(rr.Body.String(), `"kind":"malformed_input"`) {
		t.Fatalf("expected kind in body, got %s", rr.Body.String())
	}
}

func TestStageFailureIsServerError(t *testing.T) {
	for _, kind := range []pipeline.Kind{
		pipeline.KindNotFound,
		pipeline.KindTransientIO,
		pipeline.KindRecognition,
		pipeline.KindInvariantViolation,
	} {
		t.Run(string(kind), func(t *testing.T) {
			router := newTestHandler(&fakeHandler{err: pipeline.Errorf(kind, "op", "boom")}, HTTPOptions{})
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, binaryRequest(`{}`))
			if rr.Code != http.StatusInternalServerError {
				t.Fatalf("expected 500, got %d", rr.Code)
			}
			if !strings.Contains(rr.Body.String(), string(kind)) {
				t.Fatalf("expected kind %s in body, got %s", kind, rr.Body.String())
			}
		})
	}
}

func TestOversizedBodyRejected(t *testing.T) {
	router := newTestHandler(&fakeHandler{}, HTTPOptions{MaxBodyBytes: 16})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, binaryRequest(`{"bucket":"`+strings.Repeat("a", 64)+`"}`))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rr.Code)
	}
}

func TestExtraEventPath(t *testing.T) {
	router := newTestHandler(&fakeHandler{}, HTTPOptions{EventPaths: []string{"/minio-event"}})

	req := binaryRequest(`{}`)
	req.URL.Path = "/minio-event"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 on extra path, got %d", rr.Code)
	}
}
