package upload

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"path/filepath"

	"github.com/spf13/afero"
)

// Payload is the body of an upload: a seekable stream of known size.
//
// The caller owns the payload and closes it once the upload is settled.
type Payload struct {
	body        io.ReadSeeker
	size        int64
	contentType string
	closers     []io.Closer
}

// NewPayload returns a payload that sends size bytes from body.
func NewPayload(body io.ReadSeeker, size int64, contentType string) Payload {
	return Payload{body: body, size: size, contentType: contentType}
}

// BytesPayload returns a payload that sends data.
func BytesPayload(data []byte, contentType string) Payload {
	return NewPayload(bytes.NewReader(data), int64(len(data)), contentType)
}

// FilePayload returns a payload that streams a file.
//
// The content type is guessed from the file extension.
func FilePayload(fs afero.Fs, path string) (Payload, error) {
	file, err := OpenFile(fs, path)
	if err != nil {
		return Payload{}, err
	}

	payload := NewPayload(file, file.Size, file.ContentType)
	payload.closers = []io.Closer{file}
	return payload, nil
}

// Size is the number of bytes in the payload.
func (p Payload) Size() int64 {
	return p.size
}

// ContentType is the MIME type of the payload, or "" if unknown.
func (p Payload) ContentType() string {
	return p.contentType
}

// Close releases files opened for the payload.
func (p Payload) Close() error {
	return closeAll(p.closers)
}

// File is a regular file opened for uploading.
type File struct {
	afero.File

	// Filename is the base name of the path.
	Filename string

	Size int64

	// ContentType is guessed from the file extension.
	ContentType string
}

// OpenFile opens a regular file for uploading.
func OpenFile(fs afero.Fs, path string) (*File, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, err
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("upload: error when stat-ing %s: %v", path, err)
	}

	if stat.IsDir() {
		_ = file.Close()
		return nil, fmt.Errorf("upload: cannot upload directory %v", path)
	}

	return &File{
		File:        file,
		Filename:    filepath.Base(path),
		Size:        stat.Size(),
		ContentType: contentTypeByExtension(path),
	}, nil
}

func contentTypeByExtension(path string) string {
	if contentType := mime.TypeByExtension(filepath.Ext(path)); contentType != "" {
		return contentType
	}
	return "application/octet-stream"
}
