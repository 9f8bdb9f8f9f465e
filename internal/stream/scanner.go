// Package stream reassembles multi-page extraction responses delivered as back-to-back JSON objects.
package stream

import (
	"encoding/json"

	"github.com/hyperjump/docverify/pkg/utils"
	"go.uber.org/zap"
)

// Scanner extracts complete top-level JSON objects from an incrementally fed byte stream.
// Spans are found by brace-depth counting only; braces inside string literals are not
// special-cased, matching the producer's framing. A span that fails to parse is logged
// and skipped so one corrupt page cannot stall the stream.
type Scanner struct {
	buf     []byte
	pos     int // next byte to scan
	depth   int
	start   int // offset of the open span, -1 outside one
	skipped int
	logger  *zap.Logger
}

// NewScanner returns an empty scanner; logger may be nil.
func NewScanner(logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{start: -1, logger: logger}
}

// Feed appends chunk and returns the pages it completed, in arrival order.
func (s *Scanner) Feed(chunk []byte) []map[string]any {
	s.buf = append(s.buf, chunk...)
	var pages []map[string]any

	for ; s.pos < len(s.buf); s.pos++ {
		switch s.buf[s.pos] {
		case '{':
			if s.depth == 0 {
				s.start = s.pos
			}
			s.depth++
		case '}':
			if s.depth == 0 {
				continue
			}
			s.depth--
			if s.depth == 0 {
				if page, ok := s.parse(s.buf[s.start : s.pos+1]); ok {
					pages = append(pages, page)
				}
				s.start = -1
			}
		}
	}

	s.compact()
	return pages
}

// Pending is the number of buffered bytes belonging to an unfinished span.
func (s *Scanner) Pending() int {
	return len(s.buf)
}

// Skipped is the number of malformed spans discarded so far.
func (s *Scanner) Skipped() int {
	return s.skipped
}

func (s *Scanner) parse(span []byte) (map[string]any, bool) {
	var page map[string]any
	if err := json.Unmarshal(span, &page); err != nil {
		s.skipped++
		s.logger.Warn("failed to parse page",
			zap.Error(err),
			zap.Int("span_bytes", len(span)),
			zap.String("preview", utils.Truncate(string(span), 200)),
		)
		return nil, false
	}
	s.logger.Debug("parsed page", zap.Int("span_bytes", len(span)), zap.Bool("has_results", page["results"] != nil))
	return page, true
}

// compact drops consumed bytes, keeping only an unfinished span.
func (s *Scanner) compact() {
	if s.start < 0 {
		s.buf = s.buf[:0]
		s.pos = 0
		return
	}
	if s.start == 0 {
		return
	}
	n := copy(s.buf, s.buf[s.start:])
	s.buf = s.buf[:n]
	s.pos -= s.start
	s.start = 0
}
