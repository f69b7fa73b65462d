// Package audio wraps the media operations the pipeline delegates to ffmpeg:
// silence detection, slicing and lossless concatenation.
package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/your-org/speechflow/internal/pipeline"
)

// SilenceParams tunes non-silence detection. A span of audio quieter than the
// source's mean loudness plus ThresholdOffsetDB for at least MinSilenceMs is
// silence.
type SilenceParams struct {
	MinSilenceMs      int64
	ThresholdOffsetDB float64
}

// Processor performs the media operations the stages need.
type Processor interface {
	DetectNonSilent(ctx context.Context, path string, params SilenceParams) ([]pipeline.Span, error)
	Slice(ctx context.Context, src string, span pipeline.Span, dst string) error
	Concat(ctx context.Context, inputs []string, dst string) error
}

// CommandRunner executes an external binary and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput() //nolint:gosec
}

// FFmpeg implements Processor with the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	ffmpeg  string
	ffprobe string
	run     CommandRunner
}

// NewFFmpeg constructs a Processor. Empty binary names fall back to PATH
// lookups of "ffmpeg" and "ffprobe".
func NewFFmpeg(ffmpegBinary, ffprobeBinary string) *FFmpeg {
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	if ffprobeBinary == "" {
		ffprobeBinary = "ffprobe"
	}
	return &FFmpeg{ffmpeg: ffmpegBinary, ffprobe: ffprobeBinary, run: execRunner}
}

// WithRunner replaces the command runner.
func (f *FFmpeg) WithRunner(run CommandRunner) *FFmpeg {
	f.run = run
	return f
}

func (f *FFmpeg) DetectNonSilent(ctx context.Context, path string, params SilenceParams) ([]pipeline.Span, error) {
	totalMs, err := f.durationMs(ctx, path)
	if err != nil {
		return nil, err
	}
	if totalMs <= 0 {
		return nil, nil
	}

	mean, err := f.meanVolume(ctx, path)
	if err != nil {
		return nil, err
	}
	if math.IsInf(mean, -1) {
		// digital silence throughout
		return nil, nil
	}

	threshold := mean + params.ThresholdOffsetDB
	filter := fmt.Sprintf("silencedetect=noise=%.2fdB:d=%.3f", threshold, float64(params.MinSilenceMs)/1000)
	out, err := f.run(ctx, f.ffmpeg, "-hide_banner", "-nostats", "-i", path, "-af", filter, "-f", "null", "-")
	if err != nil {
		return nil, commandError("silencedetect", err, out)
	}
	silences, err := parseSilences(string(out), totalMs)
	if err != nil {
		return nil, err
	}
	return nonSilentSpans(silences, totalMs), nil
}

func (f *FFmpeg) Slice(ctx context.Context, src string, span pipeline.Span, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create slice dir: %w", err)
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", src,
		"-ss", formatSeconds(span.StartMs),
		"-to", formatSeconds(span.EndMs),
		dst,
	}
	if out, err := f.run(ctx, f.ffmpeg, args...); err != nil {
		return commandError("slice", err, out)
	}
	return nil
}

// Concat joins inputs in the given order into dst without re-encoding.
func (f *FFmpeg) Concat(ctx context.Context, inputs []string, dst string) error {
	if len(inputs) == 0 {
		return errors.New("concat: no inputs")
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create concat dir: %w", err)
	}

	listPath := dst + ".list"
	if err := os.WriteFile(listPath, []byte(concatList(inputs)), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	defer os.Remove(listPath)

	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		dst,
	}
	if out, err := f.run(ctx, f.ffmpeg, args...); err != nil {
		return commandError("concat", err, out)
	}
	return nil
}

func (f *FFmpeg) durationMs(ctx context.Context, path string) (int64, error) {
	out, err := f.run(ctx, f.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, commandError("probe duration", err, out)
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return int64(math.Round(seconds * 1000)), nil
}

func (f *FFmpeg) meanVolume(ctx context.Context, path string) (float64, error) {
	out, err := f.run(ctx, f.ffmpeg, "-hide_banner", "-nostats", "-i", path, "-af", "volumedetect", "-f", "null", "-")
	if err != nil {
		return 0, commandError("volumedetect", err, out)
	}
	return parseMeanVolume(string(out))
}

var (
	meanVolumePattern   = regexp.MustCompile(`mean_volume:\s*(-?inf|-?[0-9.]+)\s*dB`)
	silenceStartPattern = regexp.MustCompile(`silence_start:\s*(-?[0-9.]+(?:e[-+]?[0-9]+)?)`)
	silenceEndPattern   = regexp.MustCompile(`silence_end:\s*(-?[0-9.]+(?:e[-+]?[0-9]+)?)`)
)

func parseMeanVolume(output string) (float64, error) {
	m := meanVolumePattern.FindStringSubmatch(output)
	if m == nil {
		return 0, errors.New("volumedetect: mean_volume not reported")
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("volumedetect: parse %q: %w", m[1], err)
	}
	return v, nil
}

// parseSilences extracts silence intervals from silencedetect output. A
// trailing silence_start without a matching end runs to totalMs.
func parseSilences(output string, totalMs int64) ([]pipeline.Span, error) {
	var (
		silences []pipeline.Span
		open     = false
		start    int64
	)
	for _, line := range strings.Split(output, "\n") {
		if m := silenceStartPattern.FindStringSubmatch(line); m != nil {
			ms, err := secondsToMs(m[1])
			if err != nil {
				return nil, err
			}
			start, open = max(ms, 0), true
			continue
		}
		if m := silenceEndPattern.FindStringSubmatch(line); m != nil && open {
			ms, err := secondsToMs(m[1])
			if err != nil {
				return nil, err
			}
			silences = append(silences, pipeline.Span{StartMs: start, EndMs: min(ms, totalMs)})
			open = false
		}
	}
	if open {
		silences = append(silences, pipeline.Span{StartMs: start, EndMs: totalMs})
	}
	return silences, nil
}

// nonSilentSpans is the complement of silences over [0, totalMs).
func nonSilentSpans(silences []pipeline.Span, totalMs int64) []pipeline.Span {
	var spans []pipeline.Span
	var cursor int64
	for _, s := range silences {
		if s.StartMs > cursor {
			spans = append(spans, pipeline.Span{StartMs: cursor, EndMs: min(s.StartMs, totalMs)})
		}
		cursor = max(cursor, s.EndMs)
		if cursor >= totalMs {
			return spans
		}
	}
	if cursor < totalMs {
		spans = append(spans, pipeline.Span{StartMs: cursor, EndMs: totalMs})
	}
	return spans
}

func secondsToMs(raw string) (int64, error) {
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse seconds %q: %w", raw, err)
	}
	return int64(math.Round(seconds * 1000)), nil
}

func formatSeconds(ms int64) string {
	return fmt.Sprintf("%d.%03d", ms/1000, ms%1000)
}

func concatList(inputs []string) string {
	var b strings.Builder
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			abs = in
		}
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(abs, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

func commandError(op string, err error, output []byte) error {
	return fmt.Errorf("ffmpeg %s: %w: %s", op, err, strings.TrimSpace(string(output)))
}
