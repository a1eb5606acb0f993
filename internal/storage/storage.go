// Package storage keeps uploaded profile images on local disk or Cloudinary.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

// MaxImageBytes is the upload limit for profile images.
const MaxImageBytes = 2 << 20

// ErrInvalidPath is returned for paths that escape the storage root.
var ErrInvalidPath = errors.New("invalid storage path")

// Store persists uploaded objects.
type Store interface {
	// Save writes r under dir/name and returns the stored path.
	Save(ctx context.Context, dir, name string, r io.Reader) (string, error)
	Delete(ctx context.Context, path string) error
	// URL returns the public URL for a stored path.
	URL(path string) string
}

// allowedImages maps accepted MIME types to their file extension.
var allowedImages = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Image is a validated upload held in memory.
type Image struct {
	Data      []byte
	MIME      string
	Extension string
}

// ReadImage reads at most MaxImageBytes from r and checks the content type by sniffing.
func ReadImage(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image is empty")
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("image may not be greater than 2048 kilobytes")
	}

	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		if ext, ok := allowedImages[m.String()]; ok {
			return &Image{Data: data, MIME: m.String(), Extension: ext}, nil
		}
	}
	return nil, fmt.Errorf("image must be a file of type: jpeg, png, jpg, gif, webp")
}

// Reader returns a fresh reader over the image bytes.
func (i *Image) Reader() io.Reader { return bytes.NewReader(i.Data) }
