package storage

import (
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
)

// DetectContentType determines the MIME type for a stored object.
// Priority: provided type, extension lookup, content sniffing, octet-stream.
func DetectContentType(providedType, key string, data io.Reader) string {
	if providedType != "" {
		return providedType
	}

	ext := strings.ToLower(path.Ext(key))
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}

	if data != nil {
		buf := make([]byte, 512)
		n, err := io.ReadFull(data, buf)
		if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
			return http.DetectContentType(buf[:n])
		}
	}
	return "application/octet-stream"
}

// mediaContentTypes lists the MIME types accepted for dream media mirrors.
var mediaContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"video/mp4":  true,
	"video/webm": true,
	"audio/mpeg": true,
	"audio/mp4":  true,
	"audio/wav":  true,
}

// IsMediaContentType reports whether ct is an accepted dream media type.
func IsMediaContentType(ct string) bool {
	base := ct
	if i := strings.Index(ct, ";"); i >= 0 {
		base = strings.TrimSpace(ct[:i])
	}
	return mediaContentTypes[base]
}
