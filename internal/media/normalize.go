package media

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
)

// ErrImageTooLarge is returned before any upload when the input exceeds the byte limit.
var ErrImageTooLarge = errors.New("image too large")

// Limits bounds the images accepted for upload.
type Limits struct {
	MaxBytes     int64
	MaxDimension int
}

const jpegQuality = 85

// Normalize decodes an image, fits it inside MaxDimension on both axes and
// re-encodes it as JPEG. EXIF orientation is applied so the stored pixels
// are upright.
func Normalize(r io.Reader, lim Limits) ([]byte, error) {
	if lim.MaxBytes > 0 {
		r = io.LimitReader(r, lim.MaxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if lim.MaxBytes > 0 && int64(len(data)) > lim.MaxBytes {
		return nil, fmt.Errorf("%w: over %d bytes", ErrImageTooLarge, lim.MaxBytes)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	if d := lim.MaxDimension; d > 0 {
		b := img.Bounds()
		if b.Dx() > d || b.Dy() > d {
			img = imaging.Fit(img, d, d, imaging.Lanczos)
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}
