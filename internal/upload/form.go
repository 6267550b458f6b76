package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/spf13/afero"
)

// Form builds a multipart/form-data payload.
//
// File contents are streamed when the payload is sent rather than copied
// into memory.
type Form struct {
	buf     *bytes.Buffer
	writer  *multipart.Writer
	parts   []sizedReadSeeker
	closers []io.Closer
	err     error
}

func NewForm() *Form {
	buf := &bytes.Buffer{}
	return &Form{buf: buf, writer: multipart.NewWriter(buf)}
}

// AddField adds a plain text field.
func (f *Form) AddField(name, value string) *Form {
	if f.err != nil {
		return f
	}

	w, err := f.writer.CreateFormField(name)
	if err == nil {
		_, err = io.WriteString(w, value)
	}
	f.err = err
	return f
}

// AddFile adds a file field whose content is read from content.
func (f *Form) AddFile(
	field, filename string,
	content io.ReadSeeker,
	size int64,
	contentType string,
) *Form {
	if f.err != nil {
		return f
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(
		`form-data; name="%s"; filename="%s"`,
		escapeQuotes(field), escapeQuotes(filename)))
	header.Set("Content-Type", contentType)

	if _, f.err = f.writer.CreatePart(header); f.err != nil {
		return f
	}

	f.flushBuffer()
	f.parts = append(f.parts, sizedReadSeeker{content, size})
	return f
}

// AddFileFromFS adds a file field with the contents of a file on disk.
//
// The file is closed by the payload's Close method.
func (f *Form) AddFileFromFS(fs afero.Fs, field, path string) *Form {
	if f.err != nil {
		return f
	}

	file, err := OpenFile(fs, path)
	if err != nil {
		f.err = err
		return f
	}
	f.closers = append(f.closers, file)

	return f.AddFile(field, file.Filename, file, file.Size, file.ContentType)
}

// Payload finishes the form.
//
// The form must not be modified afterwards.
func (f *Form) Payload() (Payload, error) {
	if f.err == nil {
		f.err = f.writer.Close()
	}
	if f.err != nil {
		return Payload{}, errors.Join(
			fmt.Errorf("upload: building form: %v", f.err),
			closeAll(f.closers))
	}
	f.flushBuffer()

	body := newMultiReadSeeker(f.parts)
	return Payload{
		body:        body,
		size:        body.size,
		contentType: f.writer.FormDataContentType(),
		closers:     f.closers,
	}, nil
}

// flushBuffer turns the bytes written so far into a part of the body.
func (f *Form) flushBuffer() {
	if f.buf.Len() == 0 {
		return
	}
	data := bytes.Clone(f.buf.Bytes())
	f.buf.Reset()
	f.parts = append(f.parts, sizedReadSeeker{bytes.NewReader(data), int64(len(data))})
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func closeAll(closers []io.Closer) error {
	var errs []error
	for _, c := range closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
