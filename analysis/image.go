package analysis

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// DefaultMaxImageBytes caps uploaded images.
const DefaultMaxImageBytes = 8 << 20

var (
	// ErrEmptyImage is returned for an upload without data.
	ErrEmptyImage = errors.New("analysis: empty image")
	// ErrImageTooLarge is returned for an upload above the size cap.
	ErrImageTooLarge = errors.New("analysis: image too large")
)

// DecodeImage accepts base64 image data with or without a
// "data:image/...;base64," prefix.
func DecodeImage(s string, maxBytes int) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ";base64,")
		if i < 0 {
			return nil, fmt.Errorf("analysis: data URL is not base64")
		}
		s = s[i+len(";base64,"):]
	}
	if s == "" {
		return nil, ErrEmptyImage
	}
	if maxBytes > 0 && base64.StdEncoding.DecodedLen(len(s)) > maxBytes+2 {
		return nil, ErrImageTooLarge
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("analysis: decode image: %w", err)
	}
	return CheckImage(b, maxBytes)
}

// CheckImage enforces the size cap on raw image bytes.
func CheckImage(b []byte, maxBytes int) ([]byte, error) {
	if len(b) == 0 {
		return nil, ErrEmptyImage
	}
	if maxBytes > 0 && len(b) > maxBytes {
		return nil, ErrImageTooLarge
	}
	return b, nil
}

// Fingerprint identifies image content.
func Fingerprint(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}
