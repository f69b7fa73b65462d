// Package ingest turns object-store notifications into pipeline work and
// keeps the pipeline's own artifacts from re-entering it.
package ingest

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/your-org/speechflow/internal/pipeline"
)

// Filter decides which stored objects are new source media.
type Filter struct {
	prefixes []string
	suffixes []string
}

// NewFilter builds a Filter. Blank entries are ignored.
func NewFilter(prefixes, suffixes []string) *Filter {
	return &Filter{prefixes: clean(prefixes), suffixes: clean(suffixes)}
}

// Apply percent-decodes rawKey and reports whether the object should start a
// pipeline run. A false result with nil error means suppressed.
func (f *Filter) Apply(bucket, rawKey string) (pipeline.SourceObject, bool, error) {
	key, err := url.QueryUnescape(rawKey)
	if err != nil {
		return pipeline.SourceObject{}, false, pipeline.Wrap(pipeline.KindMalformedInput, "filter", fmt.Errorf("decode key %q: %w", rawKey, err))
	}
	src := pipeline.SourceObject{Bucket: bucket, Key: key}
	if err := src.Validate(); err != nil {
		return pipeline.SourceObject{}, false, err
	}
	if f.Excluded(key) {
		return src, false, nil
	}
	return src, true, nil
}

// Excluded reports whether a decoded key belongs to the pipeline's reserved
// namespaces or carries an artifact suffix.
func (f *Filter) Excluded(key string) bool {
	trimmed := strings.TrimLeft(key, "/")
	for _, p := range f.prefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	for _, s := range f.suffixes {
		if strings.HasSuffix(key, s) {
			return true
		}
	}
	return false
}

func clean(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
