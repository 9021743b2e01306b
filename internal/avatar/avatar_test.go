package avatar

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestCheckFilename(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		wantErr bool
	}{
		{name: "jpg", file: "me.jpg", wantErr: false},
		{name: "jpeg", file: "me.jpeg", wantErr: false},
		{name: "png", file: "me.png", wantErr: false},
		{name: "uppercase", file: "ME.JPG", wantErr: false},
		{name: "gif", file: "me.gif", wantErr: true},
		{name: "pdf", file: "resume.pdf", wantErr: true},
		{name: "no_extension", file: "avatar", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckFilename(tt.file)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckFilename(%q) error = %v, wantErr %v", tt.file, err, tt.wantErr)
			}
		})
	}
}

func TestNormalize_ResizesToSquarePNG(t *testing.T) {
	out, err := Normalize(encodeJPEG(t, 640, 480))
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}

	decoded, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not PNG: %v", err)
	}

	b := decoded.Bounds()
	if b.Dx() != Side || b.Dy() != Side {
		t.Fatalf("got %dx%d, want %dx%d", b.Dx(), b.Dy(), Side, Side)
	}
}

func TestNormalize_RejectsGarbage(t *testing.T) {
	_, err := Normalize([]byte("definitely not an image"))
	if !errors.Is(err, ErrNotAnImage) {
		t.Fatalf("want ErrNotAnImage, got %v", err)
	}
}

func TestNormalize_RejectsOversized(t *testing.T) {
	big := make([]byte, MaxUploadBytes+1)

	_, err := Normalize(big)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("want ErrTooLarge, got %v", err)
	}
}
