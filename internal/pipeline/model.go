package pipeline

import (
	"fmt"
	"sort"
)

// SourceObject identifies one uploaded media object, the unit of work.
type SourceObject struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// Validate reports a malformed source reference.
func (s SourceObject) Validate() error {
	if s.Bucket == "" {
		return Errorf(KindMalformedInput, "source", "bucket is required")
	}
	if s.Key == "" {
		return Errorf(KindMalformedInput, "source", "key is required")
	}
	return nil
}

// Segment is one contiguous non-silent span of the source. SequenceIndex is
// the only reassembly key; it is assigned by the splitter in detection order.
type Segment struct {
	SequenceIndex    int    `json:"sequence_index"`
	LocalStagingPath string `json:"local_staging_path"`
	RemoteObjectKey  string `json:"remote_object_key"`
	StartOffsetMs    int64  `json:"start_ms"`
	EndOffsetMs      int64  `json:"end_ms"`
}

// SegmentManifest is the hand-off between the splitter and the downstream
// stages. It is immutable once emitted.
type SegmentManifest struct {
	Bucket       string    `json:"bucket"`
	ResultPrefix string    `json:"result_dir"`
	Segments     []Segment `json:"chunks"`
	SourceKey    string    `json:"key"`
}

// Validate checks the manifest shape. Ordering and uniqueness of sequence
// indices are checked separately by the consumers that depend on them.
func (m SegmentManifest) Validate() error {
	if m.Bucket == "" {
		return Errorf(KindMalformedInput, "manifest", "bucket is required")
	}
	if m.ResultPrefix == "" {
		return Errorf(KindMalformedInput, "manifest", "result_dir is required")
	}
	for i, seg := range m.Segments {
		switch {
		case seg.SequenceIndex < 1:
			return Errorf(KindMalformedInput, "manifest", "segment %d: sequence_index must be >= 1, got %d", i, seg.SequenceIndex)
		case seg.RemoteObjectKey == "":
			return Errorf(KindMalformedInput, "manifest", "segment %d: remote_object_key is required", i)
		case seg.StartOffsetMs < 0:
			return Errorf(KindMalformedInput, "manifest", "segment %d: negative start_ms %d", i, seg.StartOffsetMs)
		case seg.EndOffsetMs <= seg.StartOffsetMs:
			return Errorf(KindMalformedInput, "manifest", "segment %d: end_ms %d not after start_ms %d", i, seg.EndOffsetMs, seg.StartOffsetMs)
		}
	}
	return nil
}

// RequireAscending fails unless segments are listed in strictly ascending
// sequence order.
func (m SegmentManifest) RequireAscending() error {
	for i := 1; i < len(m.Segments); i++ {
		prev, cur := m.Segments[i-1].SequenceIndex, m.Segments[i].SequenceIndex
		if cur <= prev {
			return Errorf(KindInvariantViolation, "manifest", "sequence_index %d follows %d", cur, prev)
		}
	}
	return nil
}

// SortedByIndex returns a copy of the segments ordered by SequenceIndex.
// Duplicate indices are an invariant violation.
func (m SegmentManifest) SortedByIndex() ([]Segment, error) {
	sorted := make([]Segment, len(m.Segments))
	copy(sorted, m.Segments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SequenceIndex < sorted[j].SequenceIndex
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i].SequenceIndex == sorted[i-1].SequenceIndex {
			return nil, Errorf(KindInvariantViolation, "manifest", "duplicate sequence_index %d", sorted[i].SequenceIndex)
		}
	}
	return sorted, nil
}

// Span is a [StartMs, EndMs) interval of non-silent audio.
type Span struct {
	StartMs int64
	EndMs   int64
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.StartMs, s.EndMs)
}

// CheckSpans verifies detector output: non-degenerate spans with strictly
// increasing starts.
func CheckSpans(spans []Span) error {
	for i, s := range spans {
		if s.StartMs < 0 || s.EndMs <= s.StartMs {
			return Errorf(KindInvariantViolation, "detect", "degenerate span %s at %d", s, i)
		}
		if i > 0 && s.StartMs <= spans[i-1].StartMs {
			return Errorf(KindInvariantViolation, "detect", "span %s does not start after %s", s, spans[i-1])
		}
	}
	return nil
}
