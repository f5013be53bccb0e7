package core

// streaming.go provides the readers the CSV codec decodes through.
//
// Spreadsheet applications write CSV in whatever encoding the host uses:
//
//   - BOMSkippingReader: drops the UTF-8 BOM (0xEF 0xBB 0xBF) Excel prepends
//   - StreamingUTF8Sanitizer: replaces invalid UTF-8 bytes with '?'
//   - WrapForDecoding: picks sanitizing or legacy-charset decoding
//
// Legacy files (Windows-1252 from German Excel installs) are transcoded
// through golang.org/x/text instead of being sanitized, so umlauts survive.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// BOMSkippingReader wraps an io.Reader and skips the UTF-8 BOM if present.
type BOMSkippingReader struct {
	r       *bufio.Reader
	checked bool
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{r: bufio.NewReader(r)}
}

// Read implements io.Reader. On the first read, it checks for and skips the BOM.
func (b *BOMSkippingReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		head, err := b.r.Peek(len(utf8BOM))
		if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
			return 0, err
		}
		if bytes.Equal(head, utf8BOM) {
			if _, err := b.r.Discard(len(utf8BOM)); err != nil {
				return 0, err
			}
		}
	}
	return b.r.Read(p)
}

// StreamingUTF8Sanitizer wraps an io.Reader and replaces invalid UTF-8 bytes
// with '?' on the fly. A multi-byte sequence split across reads is held back
// until the next read completes it.
type StreamingUTF8Sanitizer struct {
	reader  io.Reader
	pending []byte
}

// NewStreamingUTF8Sanitizer creates a new streaming UTF-8 sanitizer.
func NewStreamingUTF8Sanitizer(r io.Reader) *StreamingUTF8Sanitizer {
	return &StreamingUTF8Sanitizer{
		reader:  r,
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

// Read implements io.Reader.
func (s *StreamingUTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) < utf8.UTFMax {
		// Too small to hold a held-back sequence plus progress.
		buf := make([]byte, utf8.UTFMax*2)
		n, err := s.Read(buf)
		copy(p, buf[:n])
		if n > len(p) {
			s.pending = append(buf[len(p):n:n], s.pending...)
			return len(p), nil
		}
		return n, err
	}

	offset := copy(p, s.pending)
	s.pending = s.pending[:0]

	n, err := s.reader.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}

	atEOF := err == io.EOF
	return s.sanitize(p[:n], atEOF), err
}

// sanitize rewrites data in place and returns the number of bytes to deliver.
// Unless atEOF, an incomplete trailing sequence is moved to pending.
func (s *StreamingUTF8Sanitizer) sanitize(data []byte, atEOF bool) int {
	write := 0
	for read := 0; read < len(data); {
		if data[read] < utf8.RuneSelf {
			data[write] = data[read]
			write++
			read++
			continue
		}

		if !atEOF && !utf8.FullRune(data[read:]) {
			s.pending = append(s.pending, data[read:]...)
			return write
		}

		r, size := utf8.DecodeRune(data[read:])
		if r == utf8.RuneError && size == 1 {
			data[write] = '?'
			write++
			read++
			continue
		}
		copy(data[write:], data[read:read+size])
		write += size
		read += size
	}
	return write
}

// WrapForDecoding prepares raw CSV bytes for parsing.
// The BOM is always stripped. Input that is not valid UTF-8 is transcoded
// from legacy when set, and sanitized otherwise.
func WrapForDecoding(data []byte, legacy encoding.Encoding) io.Reader {
	var r io.Reader = NewBOMSkippingReader(bytes.NewReader(data))
	if legacy != nil && !utf8.Valid(bytes.TrimPrefix(data, utf8BOM)) {
		return transform.NewReader(r, legacy.NewDecoder())
	}
	return NewStreamingUTF8Sanitizer(r)
}
