package hassapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/uploadkit/uploader/internal/upload"
)

// Image is an image stored by the server.
type Image struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Filesize    int64     `json:"filesize"`
	ContentType string    `json:"content_type"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// File is a named file to upload.
type File struct {
	Name        string
	Content     io.ReadSeeker
	Size        int64
	ContentType string
}

// FromUploadFile describes an opened file.
func FromUploadFile(f *upload.File) File {
	return File{
		Name:        f.Filename,
		Content:     f,
		Size:        f.Size,
		ContentType: f.ContentType,
	}
}

// CreateImageUpload prepares an upload of an image.
func (c *Client) CreateImageUpload(
	ctx context.Context,
	file File,
) (*upload.Upload, error) {
	if !strings.HasPrefix(file.ContentType, "image/") {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, file.ContentType)
	}
	return c.NewFileUpload(ctx, "/api/image/upload", file)
}

// DoImageUpload starts an image upload and returns the stored image.
//
// If ctx ends first, the upload is aborted and the error is
// upload.ErrAborted.
func DoImageUpload(ctx context.Context, u *upload.Upload) (*Image, error) {
	resp, err := upload.Wait(ctx, u, u.Start())
	if err != nil {
		return nil, err
	}

	switch resp.Status {
	case http.StatusOK:
	case http.StatusRequestEntityTooLarge:
		return nil, ErrTooLarge
	default:
		return nil, newStatusError(resp)
	}

	var image Image
	if err := resp.DecodeJSON(&image); err != nil {
		return nil, err
	}
	return &image, nil
}

// ThumbnailURL is the path of a square thumbnail of a stored image.
func ThumbnailURL(imageID string, size int) string {
	return fmt.Sprintf("/api/image/serve/%s/%dx%d", imageID, size, size)
}
