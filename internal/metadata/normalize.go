// Package metadata turns yt-dlp metadata documents into video metadata.
package metadata

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"tubefetch/internal/consts"
	"tubefetch/internal/entity"
	"tubefetch/internal/errs"
)

// allowedHeights are the only resolutions offered to callers.
var allowedHeights = map[int]struct{}{360: {}, 720: {}, 1080: {}}

// document is the subset of the yt-dlp --dump-json output we read.
// Loosely typed fields tolerate whatever extractors put there.
type document struct {
	Title     string   `json:"title"`
	Thumbnail string   `json:"thumbnail"`
	Duration  any      `json:"duration"`
	Formats   []format `json:"formats"`
}

type format struct {
	FormatID string `json:"format_id"`
	Height   any    `json:"height"`
	Vcodec   any    `json:"vcodec"`
}

type candidate struct {
	height int
	option entity.FormatOption
}

// Normalize parses a metadata document and builds the video metadata.
func Normalize(raw []byte) (*entity.VideoMetadata, error) {
	var doc *document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrParse, err)
	}

	if doc == nil {
		return nil, fmt.Errorf("%w: document is null", errs.ErrParse)
	}

	meta := &entity.VideoMetadata{
		Title:     doc.Title,
		Thumbnail: doc.Thumbnail,
		Formats:   selectFormats(doc.Formats),
	}

	if seconds, ok := doc.Duration.(float64); ok {
		meta.Duration = FormatDuration(int(seconds))
	}

	return meta, nil
}

// FormatDuration renders whole seconds as M:SS. Minutes are not capped at 59.
func FormatDuration(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60) //nolint:mnd
}

// selectFormats keeps the first eligible format per allowed height, highest first.
// With nothing eligible a single best-available option is returned.
func selectFormats(formats []format) []entity.FormatOption {
	seen := make(map[int]struct{}, len(allowedHeights))
	kept := make([]candidate, 0, len(allowedHeights))

	for _, f := range formats {
		height, ok := f.height()
		if !ok || !f.hasVideo() {
			continue
		}

		if _, allowed := allowedHeights[height]; !allowed {
			continue
		}

		if _, dup := seen[height]; dup {
			continue
		}

		seen[height] = struct{}{}
		kept = append(kept, candidate{
			height: height,
			option: entity.FormatOption{
				FormatID: f.FormatID,
				Quality:  strconv.Itoa(height) + "p",
				Ext:      consts.ContainerMP4,
			},
		})
	}

	if len(kept) == 0 {
		return []entity.FormatOption{{
			FormatID: consts.BestFormatID,
			Quality:  consts.BestQualityLabel,
			Ext:      consts.ContainerMP4,
		}}
	}

	slices.SortStableFunc(kept, func(a, b candidate) int {
		return cmp.Compare(b.height, a.height)
	})

	options := make([]entity.FormatOption, 0, len(kept))
	for _, c := range kept {
		options = append(options, c.option)
	}

	return options
}

func (f format) height() (int, bool) {
	h, ok := f.Height.(float64)
	if !ok {
		return 0, false
	}

	return int(h), true
}

// hasVideo reports whether the codec is present and not the literal "none".
func (f format) hasVideo() bool {
	if f.Vcodec == nil {
		return false
	}

	codec, isString := f.Vcodec.(string)

	return !isString || codec != "none"
}
