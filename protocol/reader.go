package protocol

import (
	"bufio"
	"io"
	"strings"
)

// MaxLineLen caps one wire line at 512 bytes, terminator included.
const MaxLineLen = 512

// LineScanner yields complete protocol lines from a byte stream.
// Partial data is buffered across reads. A line longer than MaxLineLen
// is truncated to the cap and processed; the remainder up to the next
// terminator is discarded and the connection stays open. Blank lines
// are yielded as empty strings; skipping them is the caller's job.
//
// The buffer leaves room for the two terminator bytes, so the content
// handed to callers never exceeds MaxLineLen-2 bytes.
type LineScanner struct {
	r       *bufio.Reader
	pending error
}

func NewLineScanner(r io.Reader) *LineScanner {
	return &LineScanner{r: bufio.NewReaderSize(r, MaxLineLen-len(Terminator))}
}

// ReadLine returns the next line with its terminator stripped.
// The returned error is io.EOF on orderly stream end.
func (s *LineScanner) ReadLine() (string, error) {
	if s.pending != nil {
		err := s.pending
		s.pending = nil
		return "", err
	}

	chunk, err := s.r.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		// Over-length line: keep the head, drop bytes up to the
		// terminator so framing stays aligned.
		head := string(chunk)
		for err == bufio.ErrBufferFull {
			_, err = s.r.ReadSlice('\n')
		}
		if err != nil {
			s.pending = err
		}
		return trimLine(head), nil
	}
	if err != nil {
		if len(chunk) > 0 {
			// Unterminated final line, deliver it before the error.
			s.pending = err
			return trimLine(string(chunk)), nil
		}
		return "", err
	}
	return trimLine(string(chunk)), nil
}

func trimLine(line string) string {
	return strings.TrimRight(line, "\r\n")
}
