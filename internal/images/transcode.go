// Package images converts uploaded pictures to the published format and
// stores them under deterministic paths.
package images

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/starford/newsdesk/internal/apperr"
)

// Output format of every transcoded image.
const (
	Extension   = "jpg"
	ContentType = "image/jpeg"
)

// DefaultMaxPixels bounds the decoded size of a source image.
const DefaultMaxPixels = 40_000_000

var acceptedTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// Transcoder re-encodes images as JPEG, shrinking them to fit a box.
// Sources declaring more than MaxPixels pixels are rejected before decoding.
type Transcoder struct {
	MaxWidth  int
	MaxHeight int
	MaxPixels int
}

// NewTranscoder returns a Transcoder fitting images within maxW x maxH.
// Non-positive bounds disable resizing on that axis.
func NewTranscoder(maxW, maxH int) *Transcoder {
	return &Transcoder{MaxWidth: maxW, MaxHeight: maxH, MaxPixels: DefaultMaxPixels}
}

// Encode decodes data and re-encodes it at quality (1-100). Transparent
// areas are flattened onto white.
func (t *Transcoder) Encode(data []byte, quality int) ([]byte, error) {
	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), acceptedTypes...) {
		return nil, fmt.Errorf("%w: unsupported content type %s", apperr.ErrTranscode, mt.String())
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", apperr.ErrTranscode, err)
	}
	if limit := t.MaxPixels; limit > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(limit) {
		return nil, fmt.Errorf("%w: image is %dx%d, above the %d pixel limit",
			apperr.ErrTranscode, cfg.Width, cfg.Height, limit)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", apperr.ErrTranscode, err)
	}

	sb := src.Bounds()
	w, h := fit(sb.Dx(), sb.Dy(), t.MaxWidth, t.MaxHeight)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if w == sb.Dx() && h == sb.Dy() {
		draw.Draw(dst, dst.Bounds(), src, sb.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: clampQuality(quality)}); err != nil {
		return nil, fmt.Errorf("%w: encode: %v", apperr.ErrTranscode, err)
	}
	return buf.Bytes(), nil
}

// fit scales w x h down to fit maxW x maxH, keeping the aspect ratio.
func fit(w, h, maxW, maxH int) (int, int) {
	scale := 1.0
	if maxW > 0 && w > maxW {
		scale = float64(maxW) / float64(w)
	}
	if maxH > 0 && h > maxH {
		if s := float64(maxH) / float64(h); s < scale {
			scale = s
		}
	}
	if scale == 1.0 {
		return w, h
	}
	return max(1, int(float64(w)*scale+0.5)), max(1, int(float64(h)*scale+0.5))
}

func clampQuality(q int) int {
	switch {
	case q <= 0:
		return jpeg.DefaultQuality
	case q > 100:
		return 100
	default:
		return q
	}
}
