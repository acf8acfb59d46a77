// Package deliver shapes an extraction result into the units the transport
// can actually send: single media messages, media groups capped at
// Telegram's batch limit, and document fallbacks for oversized video.
package deliver

import (
	"fmt"
	"os"
	"unicode/utf8"

	"grabbot/pkg/config"
	"grabbot/pkg/errors"
	"grabbot/pkg/extract"
)

// UnitKind tags how the transport must send a unit
type UnitKind int

const (
	UnitSingleImage UnitKind = iota
	UnitGroupedBatch
	UnitSingleVideo
	UnitSingleAudio
	UnitOversizedDocument
)

// String returns the unit kind name used in logs
func (k UnitKind) String() string {
	switch k {
	case UnitSingleImage:
		return "single_image"
	case UnitGroupedBatch:
		return "grouped_batch"
	case UnitSingleVideo:
		return "single_video"
	case UnitSingleAudio:
		return "single_audio"
	case UnitOversizedDocument:
		return "oversized_document"
	default:
		return "unknown"
	}
}

// Unit is one transport send. For grouped batches the caption belongs to
// the first file only. Every unit carries the request's delete token so
// the user can retract the original message after delivery.
type Unit struct {
	Kind        UnitKind
	Files       []string
	Caption     string
	Streaming   bool
	DeleteToken string
}

// Shaper turns extraction results into delivery units
type Shaper struct {
	cfg *config.DeliveryConfig
}

// NewShaper creates a Shaper with the configured limits
func NewShaper(cfg *config.DeliveryConfig) *Shaper {
	return &Shaper{cfg: cfg}
}

// Shape maps a result onto delivery units. Shaping itself never fails;
// the only error source is statting a staged video file.
func (s *Shaper) Shape(result *extract.Result, deleteToken string) ([]Unit, error) {
	caption := Truncate(result.Caption, s.cfg.CaptionLimit)

	switch result.Kind {
	case extract.KindImage:
		return s.shapeImages(result.Files, caption, deleteToken), nil
	case extract.KindAudio:
		return []Unit{{
			Kind:        UnitSingleAudio,
			Files:       result.Files[:1],
			Caption:     caption,
			DeleteToken: deleteToken,
		}}, nil
	default:
		return s.shapeVideo(result.Files[0], caption, deleteToken)
	}
}

func (s *Shaper) shapeImages(files []string, caption string, deleteToken string) []Unit {
	if len(files) == 1 {
		return []Unit{{
			Kind:        UnitSingleImage,
			Files:       files,
			Caption:     caption,
			DeleteToken: deleteToken,
		}}
	}

	var units []Unit
	for start := 0; start < len(files); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(files) {
			end = len(files)
		}
		chunk := files[start:end]

		unitCaption := ""
		if start == 0 {
			unitCaption = caption
		}

		// A leftover chunk of one is an ordinary photo message, not a
		// degenerate media group.
		kind := UnitGroupedBatch
		if len(chunk) == 1 {
			kind = UnitSingleImage
		}

		units = append(units, Unit{
			Kind:        kind,
			Files:       chunk,
			Caption:     unitCaption,
			DeleteToken: deleteToken,
		})
	}
	return units
}

func (s *Shaper) shapeVideo(file string, caption string, deleteToken string) ([]Unit, error) {
	info, err := os.Stat(file)
	if err != nil {
		return nil, errors.New(errors.ErrorTypeFilesystem, fmt.Sprintf("failed to stat staged video: %v", err))
	}

	// The streaming-video path rejects payloads over the threshold, so
	// anything larger ships as a generic document. The boundary itself
	// still goes out as video.
	if info.Size() <= s.cfg.DocumentThreshold {
		return []Unit{{
			Kind:        UnitSingleVideo,
			Files:       []string{file},
			Caption:     caption,
			Streaming:   true,
			DeleteToken: deleteToken,
		}}, nil
	}

	return []Unit{{
		Kind:        UnitOversizedDocument,
		Files:       []string{file},
		Caption:     caption,
		DeleteToken: deleteToken,
	}}, nil
}

// Truncate caps s at limit runes, appending an ellipsis when it cuts
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	if limit == 1 {
		return "…"
	}
	return string(runes[:limit-1]) + "…"
}
