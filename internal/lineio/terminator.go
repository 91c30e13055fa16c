package lineio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"runtime"
)

// PlatformTerminatorLen is the terminator length assumed for files that
// contain no newline at all.
func PlatformTerminatorLen() int {
	if runtime.GOOS == "windows" {
		return 2
	}
	return 1
}

// DetectTerminator scans r byte by byte from its current position (the start
// of the file) up to the first '\n'. It returns 2 when that newline is
// preceded by '\r', 1 otherwise, and PlatformTerminatorLen when r holds no
// newline.
func DetectTerminator(r io.Reader) (int, error) {
	br := bufio.NewReaderSize(r, 4096)
	var prev byte
	for {
		b, err := br.ReadByte()
		if errors.Is(err, io.EOF) {
			return PlatformTerminatorLen(), nil
		}
		if err != nil {
			return 0, fmt.Errorf("detect line terminator: %w", err)
		}
		if b == '\n' {
			if prev == '\r' {
				return 2, nil
			}
			return 1, nil
		}
		prev = b
	}
}
