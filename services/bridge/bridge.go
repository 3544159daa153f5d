// Package bridge owns the host serial link: it frames inbound bytes into
// command lines for the control loop and serialises every outbound write.
package bridge

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"lorabridge/x/mathx"
)

// Port is the host link. uartx.UART satisfies it on the MCU; FromReader
// adapts a plain reader on the host.
type Port interface {
	io.Writer
	RecvSomeContext(ctx context.Context, buf []byte) (int, error)
}

// Config controls line framing.
type Config struct {
	// Echo writes received characters back, as a terminal expects.
	Echo bool `json:"echo"`
	// MaxLine bounds one command line; clamped to 64..4096, default 512.
	MaxLine int `json:"max_line,omitempty"`
}

// Line is one framed input line. Overflow marks a line that exceeded
// MaxLine and was discarded; Text is then empty.
type Line struct {
	Text     string
	Overflow bool
}

const (
	defaultMaxLine = 512
	readSlice      = 250 * time.Millisecond
)

// Service reads the port and serialises writes to it.
type Service struct {
	port  Port
	cfg   Config
	lines chan Line

	wmu sync.Mutex
}

func New(port Port, cfg Config) *Service {
	if cfg.MaxLine == 0 {
		cfg.MaxLine = defaultMaxLine
	}
	cfg.MaxLine = mathx.Clamp(cfg.MaxLine, 64, 4096)
	return &Service{port: port, cfg: cfg, lines: make(chan Line, 4)}
}

// Lines delivers framed input. It is closed when Run returns.
func (s *Service) Lines() <-chan Line { return s.lines }

// Write sends p to the host. Safe for concurrent use.
func (s *Service) Write(p []byte) (int, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.port.Write(p)
}

// Run reads until ctx is cancelled or the port reports io.EOF. Transient
// read errors are retried with backoff.
func (s *Service) Run(ctx context.Context) error {
	defer close(s.lines)

	buf := make([]byte, 64)
	line := make([]byte, 0, s.cfg.MaxLine)
	overflow := false
	backoff := backoffSeq(10*time.Millisecond, time.Second)

	emit := func(l Line) bool {
		select {
		case s.lines <- l:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		rctx, cancel := context.WithTimeout(ctx, readSlice)
		n, err := s.port.RecvSomeContext(rctx, buf)
		cancel()
		if n > 0 {
			backoff = backoffSeq(10*time.Millisecond, time.Second)
			if s.cfg.Echo {
				s.echo(buf[:n])
			}
			for _, b := range buf[:n] {
				switch b {
				case '\r', '\n':
					switch {
					case overflow:
						overflow = false
						if !emit(Line{Overflow: true}) {
							return nil
						}
					case len(line) > 0:
						if !emit(Line{Text: string(line)}) {
							return nil
						}
					}
					line = line[:0]
				default:
					if overflow {
						continue
					}
					if len(line) >= s.cfg.MaxLine {
						overflow = true
						line = line[:0]
						continue
					}
					line = append(line, b)
				}
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		case errors.Is(err, io.EOF):
			if len(line) > 0 && !overflow {
				emit(Line{Text: string(line)})
			}
			return io.EOF
		default:
			if !sleep(ctx, backoff()) {
				return nil
			}
		}
	}
}

func (s *Service) echo(p []byte) {
	out := make([]byte, 0, len(p)+1)
	for _, b := range p {
		switch b {
		case '\r', '\n':
			out = append(out, '\r', '\n')
		default:
			out = append(out, b)
		}
	}
	_, _ = s.Write(out)
}

// -----------------------------------------------------------------------------
// Host adapter
// -----------------------------------------------------------------------------

type readerPort struct {
	w      io.Writer
	chunks chan []byte
	err    error
	done   chan struct{}
	rest   []byte
}

// FromReader adapts a blocking reader and a writer into a Port. A pump
// goroutine owns r until it returns an error.
func FromReader(r io.Reader, w io.Writer) Port {
	p := &readerPort{w: w, chunks: make(chan []byte), done: make(chan struct{})}
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				p.chunks <- append([]byte(nil), buf[:n]...)
			}
			if err != nil {
				p.err = err
				close(p.done)
				return
			}
		}
	}()
	return p
}

func (p *readerPort) Write(b []byte) (int, error) { return p.w.Write(b) }

func (p *readerPort) RecvSomeContext(ctx context.Context, buf []byte) (int, error) {
	if len(p.rest) == 0 {
		select {
		case c := <-p.chunks:
			p.rest = c
		case <-p.done:
			return 0, p.err
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	n := copy(buf, p.rest)
	p.rest = p.rest[n:]
	return n, nil
}

// -----------------------------------------------------------------------------
// Utilities
// -----------------------------------------------------------------------------

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	var cur = min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
