package avatar

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	// registered decoders for the accepted upload formats
	_ "image/jpeg"
)

const (
	// MaxUploadBytes caps the multipart file size.
	MaxUploadBytes = 1 << 20 // 1MB

	// Side is the normalized square dimension.
	Side = 250
)

var (
	ErrBadExtension = errors.New("please upload an image (jpg, jpeg or png)")
	ErrNotAnImage   = errors.New("file is not a decodable image")
	ErrTooLarge     = errors.New("image exceeds the 1MB limit")
)

var allowedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
}

// CheckFilename enforces the upload extension whitelist.
func CheckFilename(name string) error {
	ext := strings.ToLower(filepath.Ext(name))

	if _, ok := allowedExtensions[ext]; !ok {
		return ErrBadExtension
	}

	return nil
}

// Normalize decodes the upload, scales it to a Side x Side square and
// re-encodes as PNG. Every stored avatar therefore has one dimension and
// one format regardless of what was uploaded.
func Normalize(data []byte) ([]byte, error) {
	if len(data) > MaxUploadBytes {
		return nil, ErrTooLarge
	}

	src, _, err := image.Decode(bytes.NewReader(data))

	if err != nil {
		return nil, ErrNotAnImage
	}

	dst := image.NewRGBA(image.Rect(0, 0, Side, Side))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var out bytes.Buffer

	if err := png.Encode(&out, dst); err != nil {
		return nil, err
	}

	return out.Bytes(), nil
}
