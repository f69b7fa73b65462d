package pipeline

import (
	"fmt"
	"path"
	"strings"
)

const (
	resultsRoot    = "results/"
	chunksDir      = "chunks/"
	transcriptName = "transcript.srt"
	mergedName     = "merged"
	defaultExt     = ".mp3"
)

// ResultPrefix is the namespace for every artifact derived from sourceKey.
// It lives under results/, which the ingest filter never forwards, so the
// pipeline's own uploads cannot re-trigger ingestion.
func ResultPrefix(sourceKey string) string {
	base := strings.TrimSuffix(sourceKey, path.Ext(sourceKey))
	base = strings.TrimLeft(base, "/")
	return resultsRoot + base + "/"
}

// MediaExt returns the extension of key, falling back to .mp3.
func MediaExt(key string) string {
	if ext := path.Ext(key); ext != "" {
		return strings.ToLower(ext)
	}
	return defaultExt
}

// ChunkName is the file name of the nth segment.
func ChunkName(index int, ext string) string {
	return fmt.Sprintf("chunk_%d%s", index, ext)
}

// ChunkStagingPath is the staging path recorded in the manifest.
func ChunkStagingPath(index int, ext string) string {
	return chunksDir + ChunkName(index, ext)
}

// ChunkKey is the object key of the nth segment.
func ChunkKey(prefix string, index int, ext string) string {
	return prefix + chunksDir + ChunkName(index, ext)
}

// TranscriptKey is the object key of the concatenated transcript.
func TranscriptKey(prefix string) string {
	return prefix + transcriptName
}

// MergedKey is the object key of the reassembled audio.
func MergedKey(prefix, ext string) string {
	return prefix + mergedName + ext
}
