package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const pollInterval = 500 * time.Millisecond

// promptReader reads CLI output until one of a set of prompts shows up.
// setDeadline bounds each read so the context is rechecked regularly.
type promptReader struct {
	r           io.Reader
	setDeadline func(time.Time) error
	log         *logrus.Entry
}

func (p promptReader) readUntil(ctx context.Context, pattern string, timeout time.Duration) (string, error) {
	return p.readUntilAny(ctx, []string{pattern}, timeout)
}

func (p promptReader) readUntilAny(ctx context.Context, patterns []string, timeout time.Duration) (string, error) {
	buffer := make([]byte, BufferSize)
	var output strings.Builder
	output.Grow(BufferSize)
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	for {
		if err := ctx.Err(); err != nil {
			return output.String(), err
		}
		if p.setDeadline != nil {
			next := time.Now().Add(pollInterval)
			if deadline.Before(next) {
				next = deadline
			}
			_ = p.setDeadline(next)
		}

		n, err := p.r.Read(buffer)
		if n > 0 {
			output.Write(buffer[:n])
			p.log.Tracef("Switch output: Read: %s", string(buffer[:n]))
			text := output.String()
			for _, pattern := range patterns {
				if strings.Contains(text, pattern) {
					return text, nil
				}
			}
		}

		if err != nil {
			var ne net.Error
			if !errors.As(err, &ne) || !ne.Timeout() {
				return output.String(), fmt.Errorf("read error: %w", err)
			}
		}

		if !time.Now().Before(deadline) {
			return output.String(), fmt.Errorf("timeout waiting for prompts %s: %w", strings.Join(patterns, ", "), context.DeadlineExceeded)
		}
	}
}

// trimEcho drops the echoed command line and the trailing prompt line.
func trimEcho(output string) string {
	lines := strings.Split(output, "\n")
	if len(lines) > 1 {
		return strings.Join(lines[1:len(lines)-1], "\n")
	}
	return ""
}

var noDeadline time.Time

// streamReader pumps a blocking reader into a channel so reads can time out
// without touching the deadline of a multiplexed connection underneath.
type streamReader struct {
	chunks   chan []byte
	done     chan struct{}
	err      error
	pending  []byte
	deadline time.Time
}

func newStreamReader(r io.Reader) *streamReader {
	s := &streamReader{chunks: make(chan []byte, 64), done: make(chan struct{})}
	go s.pump(r)
	return s
}

func (s *streamReader) pump(r io.Reader) {
	buf := make([]byte, BufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.chunks <- chunk:
			case <-s.done:
				return
			}
		}
		if err != nil {
			s.err = err
			close(s.chunks)
			return
		}
	}
}

func (s *streamReader) SetReadDeadline(t time.Time) error {
	s.deadline = t
	return nil
}

func (s *streamReader) Read(p []byte) (int, error) {
	if len(s.pending) > 0 {
		n := copy(p, s.pending)
		s.pending = s.pending[n:]
		return n, nil
	}
	var timeout <-chan time.Time
	if !s.deadline.IsZero() {
		timer := time.NewTimer(time.Until(s.deadline))
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case chunk, ok := <-s.chunks:
		if !ok {
			return 0, s.err
		}
		n := copy(p, chunk)
		s.pending = chunk[n:]
		return n, nil
	case <-timeout:
		return 0, os.ErrDeadlineExceeded
	}
}

// Close stops the pump once the underlying reader is gone.
func (s *streamReader) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}
