package upload

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// isImage reports whether a media type is eligible for a preview.
func isImage(mediaType string) bool {
	return strings.HasPrefix(strings.ToLower(mediaType), "image/")
}

// DataURL reads the whole file into a base64 data URL.
func DataURL(f File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", f.Name(), err)
	}
	defer rc.Close()

	mediaType := f.MediaType()
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}

	var b strings.Builder
	b.WriteString("data:")
	b.WriteString(mediaType)
	b.WriteString(";base64,")

	enc := base64.NewEncoder(base64.StdEncoding, &b)
	if _, err := io.Copy(enc, rc); err != nil {
		return "", fmt.Errorf("reading %s: %w", f.Name(), err)
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return b.String(), nil
}
