package media

import (
	"fmt"
	"net/url"
	"strconv"
)

// Options selects a derived rendition of a hosted image.
type Options struct {
	Width   int
	Height  int
	Quality int
	Crop    string // "fill", "fit" or "thumb"
}

// Transform returns url with the rendition encoded as query parameters.
// Zero fields are left out.
func Transform(rawURL string, opts Options) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse image url: %w", err)
	}
	q := u.Query()
	setInt := func(key string, v int) {
		if v > 0 {
			q.Set(key, strconv.Itoa(v))
		}
	}
	setInt("w", opts.Width)
	setInt("h", opts.Height)
	setInt("q", opts.Quality)
	if opts.Crop != "" {
		q.Set("crop", opts.Crop)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
