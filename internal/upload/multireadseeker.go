package upload

import (
	"errors"
	"io"
)

type sizedReadSeeker struct {
	io.ReadSeeker
	size int64
}

// multiReadSeeker concatenates streams of known sizes.
type multiReadSeeker struct {
	parts []sizedReadSeeker
	size  int64

	// offset is the absolute position; index and partOffset locate it.
	offset     int64
	index      int
	partOffset int64
	positioned bool
}

func newMultiReadSeeker(parts []sizedReadSeeker) *multiReadSeeker {
	var size int64
	for _, p := range parts {
		size += p.size
	}
	return &multiReadSeeker{parts: parts, size: size}
}

// Read implements io.Reader.
func (m *multiReadSeeker) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for m.index < len(m.parts) {
		part := m.parts[m.index]
		remaining := part.size - m.partOffset
		if remaining <= 0 {
			m.index++
			m.partOffset = 0
			m.positioned = false
			continue
		}

		if !m.positioned {
			if _, err := part.Seek(m.partOffset, io.SeekStart); err != nil {
				return 0, err
			}
			m.positioned = true
		}

		n, err := part.Read(p[:min(int64(len(p)), remaining)])
		m.partOffset += int64(n)
		m.offset += int64(n)

		switch {
		case errors.Is(err, io.EOF) && m.partOffset < part.size:
			return n, io.ErrUnexpectedEOF
		case err != nil && !errors.Is(err, io.EOF):
			return n, err
		case n > 0:
			return n, nil
		case err == nil:
			// The part made no progress; let the caller retry.
			return 0, nil
		}
	}
	return 0, io.EOF
}

// Seek implements io.Seeker.
func (m *multiReadSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = m.offset + offset
	case io.SeekEnd:
		abs = m.size + offset
	default:
		return 0, errors.New("upload: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("upload: negative position")
	}

	m.offset = abs
	m.index = 0
	m.positioned = false
	for m.index < len(m.parts) && abs >= m.parts[m.index].size {
		abs -= m.parts[m.index].size
		m.index++
	}
	m.partOffset = abs
	return m.offset, nil
}
