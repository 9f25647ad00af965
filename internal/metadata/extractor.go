// File: internal/metadata/extractor.go

// Package metadata pulls technical metadata out of media files: EXIF tags
// from images, container fields from videos via an external prober, and a
// best-effort creation year inferred from either.
package metadata

import (
	"bufio"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mediaforge/internal/config"
)

// Kind classifies a media file by its extension.
type Kind string

const (
	KindImage   Kind = "image"
	KindVideo   Kind = "video"
	KindUnknown Kind = "unknown"
)

var (
	imageExts = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
		".webp": true, ".tiff": true, ".bmp": true,
	}
	videoExts = map[string]bool{
		".mp4": true, ".mov": true, ".mkv": true, ".avi": true,
		".webm": true, ".m4v": true, ".wmv": true,
	}
)

// Classify maps a file path to its media kind by extension alone.
func Classify(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case imageExts[ext]:
		return KindImage
	case videoExts[ext]:
		return KindVideo
	default:
		return KindUnknown
	}
}

// Info is the extraction result. Fields holds flattened key/value metadata;
// Year is 0 when no plausible creation year was found.
type Info struct {
	Path   string            `json:"path"`
	Kind   Kind              `json:"kind"`
	Fields map[string]string `json:"fields"`
	Year   int               `json:"year,omitempty"`
}

// Extractor reads media metadata. Video extraction shells out to the
// configured prober binary; image extraction is done in-process.
type Extractor struct {
	cfg    config.MetadataConfig
	logger *zap.Logger
}

// NewExtractor wires an extractor against the prober configuration.
func NewExtractor(cfg config.MetadataConfig, logger *zap.Logger) *Extractor {
	return &Extractor{cfg: cfg, logger: logger.Named("metadata")}
}

// Extract reads metadata for the file at path. Unknown kinds return an
// Info with empty fields rather than an error; a missing file is an error.
func (e *Extractor) Extract(ctx context.Context, path string) (*Info, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("metadata: cannot stat %q: %w", path, err)
	}

	info := &Info{Path: path, Kind: Classify(path), Fields: map[string]string{}}
	switch info.Kind {
	case KindImage:
		e.extractImage(path, info)
	case KindVideo:
		if err := e.extractVideo(ctx, path, info); err != nil {
			return nil, err
		}
	default:
		e.logger.Debug("Unrecognized media extension; no fields extracted.", zap.String("path", path))
	}

	info.Year = InferYear(info.Fields)
	return info, nil
}

// tagCollector flattens EXIF tags into a string map.
type tagCollector struct {
	fields map[string]string
}

func (c *tagCollector) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if val, err := tag.StringVal(); err == nil {
		c.fields[string(name)] = val
		return nil
	}
	c.fields[string(name)] = tag.String()
	return nil
}

// extractImage reads pixel dimensions and EXIF tags. Either source may be
// absent (PNG screenshots carry no EXIF); whatever is readable is kept.
func (e *Extractor) extractImage(path string, info *Info) {
	f, err := os.Open(path)
	if err != nil {
		e.logger.Warn("Failed to open image.", zap.String("path", path), zap.Error(err))
		return
	}
	defer f.Close()

	if cfg, _, err := image.DecodeConfig(f); err == nil {
		info.Fields["Width"] = strconv.Itoa(cfg.Width)
		info.Fields["Height"] = strconv.Itoa(cfg.Height)
	}

	if _, err := f.Seek(0, 0); err != nil {
		return
	}
	x, err := exif.Decode(f)
	if err != nil {
		e.logger.Debug("No EXIF data in image.", zap.String("path", path), zap.Error(err))
		return
	}
	x.Walk(&tagCollector{fields: info.Fields})
}

// extractVideo shells out to the prober and flattens its plaintext report
// into key/value fields.
func (e *Extractor) extractVideo(ctx context.Context, path string, info *Info) error {
	args := append(append([]string{}, e.cfg.ProbeArgs...), path)
	cmd := exec.CommandContext(ctx, e.cfg.ProbeCommand, args...)

	// ffprobe writes its human-readable report to stderr, other probers to
	// stdout; take both.
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("metadata: prober %q failed for %q: %w", e.cfg.ProbeCommand, path, err)
	}

	flattenProbeOutput(string(out), info.Fields)
	return nil
}

// flattenProbeOutput parses "Key : Value" lines into the field map,
// splitting on the first colon. The first occurrence of a key wins so the
// container-level creation time is not shadowed by per-stream copies.
func flattenProbeOutput(report string, fields map[string]string) {
	scanner := bufio.NewScanner(strings.NewReader(report))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		i := strings.Index(line, ":")
		if i <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:i])
		val := strings.TrimSpace(line[i+1:])
		if key == "" || val == "" {
			continue
		}
		if _, seen := fields[key]; !seen {
			fields[key] = val
		}
	}
}
