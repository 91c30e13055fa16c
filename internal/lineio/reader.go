// Package lineio reads physical lines from delimited text files while keeping
// track of the byte offset where each line starts, and re-reads single lines
// at a stored offset.
//
// After every line the running offset advances by the line's bytes plus its
// terminator, which for a consistently terminated file is the length reported
// by DetectTerminator. Both "\n" and "\r\n" end a line; lines whose
// terminator differs from the detected one are counted, not rejected.
//
// Input may be in any ASCII-compatible encoding known to
// golang.org/x/text/encoding/htmlindex; bytes are decoded to UTF-8 after
// offsets are accounted, so offsets always refer to the raw file.
package lineio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// readBufSize is the bufio buffer used for sequential passes.
const readBufSize = 64 * 1024

// asciiSample holds every byte the line splitter and the field grammar may
// look at before decoding.
const asciiSample = "\r\n\t !\"#$%&'()*+,-./0123456789:;<=>?@ABCDEFGHIJKLMNOPQRSTUVWXYZ[\\]^_`abcdefghijklmnopqrstuvwxyz{|}~"

// LookupEncoding resolves an encoding label such as "windows-1251" or
// "latin1". The empty label and UTF-8 labels return nil, meaning no decoding.
//
// Lines are split on the raw '\n' byte before decoding, so only encodings
// that represent ASCII as itself are accepted; UTF-16 and the stateful
// ISO-2022-JP are rejected.
func LookupEncoding(label string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "utf-8", "utf8":
		return nil, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", label, err)
	}
	if !asciiCompatible(enc) {
		name, _ := htmlindex.Name(enc)
		return nil, fmt.Errorf("encoding %q (%s) is not ASCII-compatible", label, name)
	}
	return enc, nil
}

// asciiCompatible reports whether enc encodes and decodes asciiSample
// byte for byte and keeps no shift state between bytes.
func asciiCompatible(enc encoding.Encoding) bool {
	if name, err := htmlindex.Name(enc); err == nil && name == "iso-2022-jp" {
		return false
	}
	encoded, err := enc.NewEncoder().String(asciiSample)
	if err != nil || encoded != asciiSample {
		return false
	}
	decoded, err := enc.NewDecoder().String(asciiSample)
	return err == nil && decoded == asciiSample
}

// Reader yields the lines of an input stream together with their starting
// byte offsets.
type Reader struct {
	br      *bufio.Reader
	termLen int
	enc     encoding.Encoding
	offset  int64
	buf     []byte
	mixed   int
}

// NewReader returns a Reader over r. termLen is the terminator length
// reported by DetectTerminator; enc may be nil for UTF-8 input.
func NewReader(r io.Reader, termLen int, enc encoding.Encoding) *Reader {
	if termLen <= 0 {
		termLen = PlatformTerminatorLen()
	}
	return &Reader{br: bufio.NewReaderSize(r, readBufSize), termLen: termLen, enc: enc}
}

// Next returns the next line without its terminator and the offset at which
// it starts. It returns io.EOF once the input is exhausted.
func (r *Reader) Next() (string, int64, error) {
	raw, err := r.readRaw()
	if err != nil {
		return "", 0, err
	}
	start := r.offset
	r.offset += int64(len(raw))

	raw, n := stripTerminator(raw)
	if n > 0 && n != r.termLen {
		r.mixed++
	}

	line, err := decode(raw, r.enc)
	if err != nil {
		return "", 0, fmt.Errorf("decode line at offset %d: %w", start, err)
	}
	return line, start, nil
}

// Offset is the running offset, i.e. where the next line starts.
func (r *Reader) Offset() int64 { return r.offset }

// MixedTerminators is the number of lines read so far whose terminator
// differs from the detected one.
func (r *Reader) MixedTerminators() int { return r.mixed }

// readRaw returns the next line's bytes including its terminator. The result
// is only valid until the next call.
func (r *Reader) readRaw() ([]byte, error) {
	r.buf = r.buf[:0]
	for {
		chunk, err := r.br.ReadSlice('\n')
		switch {
		case err == nil:
			r.buf = append(r.buf, chunk...)
			return r.buf, nil
		case errors.Is(err, bufio.ErrBufferFull):
			r.buf = append(r.buf, chunk...)
		case errors.Is(err, io.EOF):
			r.buf = append(r.buf, chunk...)
			if len(r.buf) == 0 {
				return nil, io.EOF
			}
			// Last line without a terminator.
			return r.buf, nil
		default:
			return nil, err
		}
	}
}

// ReadLineAt reads the single line starting at off from ra. It uses only
// positioned reads, so concurrent or interleaved calls on the same handle do
// not disturb each other.
func ReadLineAt(ra io.ReaderAt, off int64, enc encoding.Encoding) (string, error) {
	const chunkSize = 512

	var (
		line  []byte
		chunk = make([]byte, chunkSize)
		pos   = off
	)
	for {
		n, err := ra.ReadAt(chunk, pos)
		if i := bytes.IndexByte(chunk[:n], '\n'); i >= 0 {
			line, _ = stripTerminator(append(line, chunk[:i+1]...))
			break
		}
		line = append(line, chunk[:n]...)
		pos += int64(n)
		if errors.Is(err, io.EOF) {
			if len(line) == 0 && n == 0 && pos == off {
				return "", fmt.Errorf("read line at offset %d: %w", off, io.ErrUnexpectedEOF)
			}
			break
		}
		if err != nil {
			return "", fmt.Errorf("read line at offset %d: %w", off, err)
		}
	}
	s, err := decode(line, enc)
	if err != nil {
		return "", fmt.Errorf("decode line at offset %d: %w", off, err)
	}
	return s, nil
}

// stripTerminator removes a trailing "\n" or "\r\n" and returns the number of
// bytes removed. A lone trailing "\r" is data and stays.
func stripTerminator(b []byte) ([]byte, int) {
	if len(b) == 0 || b[len(b)-1] != '\n' {
		return b, 0
	}
	if len(b) >= 2 && b[len(b)-2] == '\r' {
		return b[:len(b)-2], 2
	}
	return b[:len(b)-1], 1
}

func decode(b []byte, enc encoding.Encoding) (string, error) {
	if enc == nil {
		return string(b), nil
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
