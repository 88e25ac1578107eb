// Package capture turns image files into the data URL text stored in journal records.
package capture

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
)

// MaxPhotoSize ограничивает размер исходного файла
const MaxPhotoSize = 10 << 20

var (
	// ErrNotImage is returned for content that is not an image
	ErrNotImage = errors.New("not an image")
	// ErrTooLarge is returned for files larger than MaxPhotoSize
	ErrTooLarge = errors.New("photo too large")
	// ErrInvalidDataURL is returned by Decode for malformed input
	ErrInvalidDataURL = errors.New("invalid data URL")
)

// EncodeFile reads an image file and returns it as a base64 data URL
func EncodeFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat photo: %w", err)
	}
	if info.Size() > MaxPhotoSize {
		return "", fmt.Errorf("%w: %s exceeds %s", ErrTooLarge,
			humanize.IBytes(uint64(info.Size())), humanize.IBytes(MaxPhotoSize))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read photo: %w", err)
	}
	return Encode(data)
}

// Encode returns data as a base64 data URL with the sniffed image MIME type
func Encode(data []byte) (string, error) {
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%w: detected %s", ErrNotImage, mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Decode splits a base64 data URL into its MIME type and payload
func Decode(dataURL string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURL)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidDataURL, err)
	}
	return mime, data, nil
}
