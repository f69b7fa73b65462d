// Package audiotest provides a file-based audio.Processor for tests.
package audiotest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/your-org/speechflow/internal/audio"
	"github.com/your-org/speechflow/internal/pipeline"
)

// Processor fakes media operations on plain files. Slice writes the span
// label, Concat joins input bytes in order.
type Processor struct {
	Spans     []pipeline.Span
	DetectErr error
	SliceErr  error
	ConcatErr error

	mu      sync.Mutex
	Params  []audio.SilenceParams
	Concats [][]string
}

var _ audio.Processor = (*Processor)(nil)

func (p *Processor) DetectNonSilent(ctx context.Context, path string, params audio.SilenceParams) ([]pipeline.Span, error) {
	p.mu.Lock()
	p.Params = append(p.Params, params)
	p.mu.Unlock()
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	if p.DetectErr != nil {
		return nil, p.DetectErr
	}
	return append([]pipeline.Span(nil), p.Spans...), nil
}

func (p *Processor) Slice(ctx context.Context, src string, span pipeline.Span, dst string) error {
	if p.SliceErr != nil {
		return p.SliceErr
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, []byte(SegmentBytes(span)), 0o644)
}

func (p *Processor) Concat(ctx context.Context, inputs []string, dst string) error {
	p.mu.Lock()
	p.Concats = append(p.Concats, append([]string(nil), inputs...))
	p.mu.Unlock()
	if p.ConcatErr != nil {
		return p.ConcatErr
	}
	var out []byte
	for _, in := range inputs {
		data, err := os.ReadFile(in)
		if err != nil {
			return err
		}
		out = append(out, data...)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, out, 0o644)
}

// SegmentBytes is the content Slice writes for span.
func SegmentBytes(span pipeline.Span) string {
	return fmt.Sprintf("<%d-%d>", span.StartMs, span.EndMs)
}
