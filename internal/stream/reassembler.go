package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNoPages is returned when a stream ends without a single parseable page.
	ErrNoPages = errors.New("no valid JSON pages found in streaming response")
	// ErrChunkTimeout is returned when reads stall before any page was captured,
	// or after the consecutive-timeout cap.
	ErrChunkTimeout = errors.New("chunk read timeout")
)

// Status is how a successful reassembly ended.
type Status string

const (
	// StatusDone means the stream ended normally.
	StatusDone Status = "done"
	// StatusPartial means reading stopped early (timeout or read error) with pages captured.
	StatusPartial Status = "partial"
)

const defaultReadSize = 32 * 1024

// Options bounds a reassembly.
type Options struct {
	ChunkTimeout           time.Duration `yaml:"chunk_timeout"`
	InactivityTimeout      time.Duration `yaml:"inactivity_timeout"`
	MaxConsecutiveTimeouts int           `yaml:"max_consecutive_timeouts"`
	RetryBackoff           time.Duration `yaml:"retry_backoff"`
	ReadSize               int           `yaml:"read_size"`
}

// DefaultOptions returns the production bounds.
func DefaultOptions() Options {
	return Options{
		ChunkTimeout:           5 * time.Minute,
		InactivityTimeout:      15 * time.Minute,
		MaxConsecutiveTimeouts: 2,
		RetryBackoff:           time.Second,
		ReadSize:               defaultReadSize,
	}
}

// ApplyDefaults fills zero fields.
func (o *Options) ApplyDefaults() {
	d := DefaultOptions()
	if o.ChunkTimeout <= 0 {
		o.ChunkTimeout = d.ChunkTimeout
	}
	if o.InactivityTimeout <= 0 {
		o.InactivityTimeout = d.InactivityTimeout
	}
	if o.MaxConsecutiveTimeouts <= 0 {
		o.MaxConsecutiveTimeouts = d.MaxConsecutiveTimeouts
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = d.RetryBackoff
	}
	if o.ReadSize <= 0 {
		o.ReadSize = d.ReadSize
	}
}

// Result is a usable combined document. Partial results are incomplete; Pages tells how much arrived.
type Result struct {
	Status        Status         `json:"status"`
	Document      map[string]any `json:"document"`
	Pages         int            `json:"pages"`
	Skipped       int            `json:"skipped"`
	BytesReceived int64          `json:"bytes_received"`
	Duration      time.Duration  `json:"duration"`
}

// Reassembler consumes one stream per Reassemble call. It holds no per-stream state,
// so a single value may serve concurrent calls.
type Reassembler struct {
	opts   Options
	logger *zap.Logger
}

// NewReassembler creates a reassembler; zero options take defaults and logger may be nil.
func NewReassembler(opts Options, logger *zap.Logger) *Reassembler {
	opts.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reassembler{opts: opts, logger: logger}
}

// Options returns the effective bounds.
func (r *Reassembler) Options() Options {
	return r.opts
}

type chunk struct {
	data []byte
	err  error
}

// pump performs the sequential reads and hands each chunk to the consumer. It stops at
// the first error (io.EOF included) or when done is closed.
func (r *Reassembler) pump(body io.Reader, out chan<- chunk, done <-chan struct{}) {
	for {
		buf := make([]byte, r.opts.ReadSize)
		n, err := body.Read(buf)
		if n > 0 {
			select {
			case out <- chunk{data: buf[:n]}:
			case <-done:
				return
			}
		}
		if err != nil {
			select {
			case out <- chunk{err: err}:
			case <-done:
			}
			return
		}
	}
}

// Reassemble reads body to the end and combines the pages it carried. body is closed on
// every path. With at least one page captured, timeouts, read errors and cancellation
// yield a StatusPartial result instead of an error.
func (r *Reassembler) Reassemble(ctx context.Context, body io.ReadCloser) (*Result, error) {
	started := time.Now()
	done := make(chan struct{})
	defer func() {
		close(done)
		if err := body.Close(); err != nil {
			r.logger.Debug("closing stream body", zap.Error(err))
		}
	}()

	chunks := make(chan chunk)
	go r.pump(body, chunks, done)

	scanner := NewScanner(r.logger)
	var (
		pages        []map[string]any
		received     int64
		lastActivity = started
		timeouts     int
	)

	finish := func(status Status) (*Result, error) {
		doc, err := CombinePages(pages)
		if err != nil {
			return nil, err
		}
		res := &Result{
			Status:        status,
			Document:      doc,
			Pages:         len(pages),
			Skipped:       scanner.Skipped(),
			BytesReceived: received,
			Duration:      time.Since(started),
		}
		r.logger.Info("stream reassembled",
			zap.String("status", string(status)),
			zap.Int("pages", res.Pages),
			zap.Int("skipped", res.Skipped),
			zap.Int64("bytes", received),
			zap.Int("pending_bytes", scanner.Pending()),
			zap.Duration("duration", res.Duration),
		)
		return res, nil
	}

	// stop ends reading early: partial with pages, otherwise err.
	stop := func(err error) (*Result, error) {
		if len(pages) > 0 {
			r.logger.Warn("stream ended early, using partial data", zap.Error(err), zap.Int("pages", len(pages)))
			return finish(StatusPartial)
		}
		r.logger.Error("stream failed", zap.Error(err), zap.Int64("bytes", received))
		return nil, err
	}

	r.logger.Info("reading extraction stream")
	chunkTimer := time.NewTimer(r.opts.ChunkTimeout)
	defer chunkTimer.Stop()
	idleTimer := time.NewTimer(r.opts.InactivityTimeout)
	defer idleTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return stop(ctx.Err())

		case <-idleTimer.C:
			return stop(fmt.Errorf("%w: no data for %s since %s", ErrChunkTimeout,
				r.opts.InactivityTimeout, lastActivity.Format(time.RFC3339)))

		case <-chunkTimer.C:
			timeouts++
			r.logger.Warn("chunk read timeout",
				zap.Int("consecutive", timeouts),
				zap.Int("pages", len(pages)),
				zap.Int64("bytes", received),
			)
			if len(pages) == 0 || timeouts >= r.opts.MaxConsecutiveTimeouts {
				return stop(fmt.Errorf("%w after %d consecutive timeouts", ErrChunkTimeout, timeouts))
			}
			select {
			case <-time.After(r.opts.RetryBackoff):
			case <-ctx.Done():
				return stop(ctx.Err())
			}
			chunkTimer.Reset(r.opts.ChunkTimeout)

		case c := <-chunks:
			timeouts = 0
			if c.err != nil {
				if errors.Is(c.err, io.EOF) {
					if len(pages) == 0 {
						r.logger.Error("stream ended without pages", zap.Int64("bytes", received), zap.Int("skipped", scanner.Skipped()))
						return nil, ErrNoPages
					}
					return finish(StatusDone)
				}
				return stop(fmt.Errorf("reading stream: %w", c.err))
			}

			received += int64(len(c.data))
			lastActivity = time.Now()
			pages = append(pages, scanner.Feed(c.data)...)

			resetTimer(chunkTimer, r.opts.ChunkTimeout)
			resetTimer(idleTimer, r.opts.InactivityTimeout)
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
