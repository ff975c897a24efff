// Package processor decodes, measures and resizes uploaded images.
package processor

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	_ "golang.org/x/image/webp"
)

var ErrDecode = errors.New("cannot decode image")

// Dimensions reads width and height from the image header.
func Dimensions(data []byte) (width, height int, err error) {
	const op = "processor.Dimensions"

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w: %v", op, ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, fmt.Errorf("%s: %w: empty %dx%d image", op, ErrDecode, cfg.Width, cfg.Height)
	}
	return cfg.Width, cfg.Height, nil
}

// Resize scales data to exactly width x height with a Lanczos filter and
// returns the result encoded as PNG.
func Resize(data []byte, width, height int) ([]byte, error) {
	const op = "processor.Resize"

	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%s: invalid target %dx%d", op, width, height)
	}

	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrDecode, err)
	}

	resized := imaging.Resize(src, width, height, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.PNG); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return buf.Bytes(), nil
}
