// Package linesplit turns a stream of arbitrary text chunks into batches of
// complete, newline-delimited lines, carrying a trailing partial line across
// chunk boundaries.
package linesplit

import "strings"

// Splitter is a streaming line-batch accumulator. It is not safe for
// concurrent use; callers drive it from a single goroutine (the ingest
// loop reading one HTTP response body).
type Splitter struct {
	sep     byte
	pending strings.Builder
}

// New returns a Splitter using sep as the line separator. sep is almost
// always '\n'.
func New(sep byte) *Splitter {
	return &Splitter{sep: sep}
}

// Feed appends chunk to the internal buffer and returns the complete lines
// it now contains, in order. The trailing fragment after the last
// separator (if any) is retained for the next Feed/End call and is not
// included in the returned batch.
//
// Concatenating the lines returned across the lifetime of a Splitter with
// sep reproduces the original byte stream up to the separator preceding
// end-of-stream.
func (s *Splitter) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	s.pending.Write(chunk)
	buf := s.pending.String()

	sepStr := string(s.sep)
	lastSep := strings.LastIndexByte(buf, s.sep)
	if lastSep < 0 {
		// No complete line yet; everything is pending.
		return nil
	}

	complete := buf[:lastSep]
	rest := buf[lastSep+1:]

	s.pending.Reset()
	s.pending.WriteString(rest)

	if complete == "" {
		return nil
	}
	return strings.Split(complete, sepStr)
}

// End flushes any trailing partial line as a final single-line batch. It
// returns nil if nothing is pending. Callers invoke this exactly once, when
// the underlying byte stream ends.
func (s *Splitter) End() []string {
	if s.pending.Len() == 0 {
		return nil
	}
	line := s.pending.String()
	s.pending.Reset()
	return []string{line}
}
