package media

import (
	"context"
	"errors"
	"io"
	"mime"
	"strings"
)

// ErrUnsupportedType is returned for uploads that are not an accepted image type.
var ErrUnsupportedType = errors.New("media: unsupported content type")

// Folders used by the API.
const (
	FolderRecipes = "recipes"
	FolderUsers   = "users"
)

// Uploader stores an image and returns the URL it can be fetched from.
type Uploader interface {
	Upload(ctx context.Context, folder, filename, contentType string, r io.Reader) (string, error)
}

var (
	_ Uploader = (*DiskStore)(nil)
	_ Uploader = (*HTTPClient)(nil)
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Extension returns the file extension for an accepted image content type.
func Extension(contentType string) (string, error) {
	mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(contentType))
	if err != nil {
		return "", ErrUnsupportedType
	}
	ext, ok := extensions[strings.ToLower(mediaType)]
	if !ok {
		return "", ErrUnsupportedType
	}
	return ext, nil
}

func validFolder(folder string) bool {
	switch folder {
	case FolderRecipes, FolderUsers:
		return true
	default:
		return false
	}
}
