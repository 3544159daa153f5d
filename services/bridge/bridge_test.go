package bridge

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

// scriptPort returns queued chunks then the final error.
type scriptPort struct {
	mu     sync.Mutex
	chunks [][]byte
	final  error
	out    bytes.Buffer
}

func (p *scriptPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.Write(b)
}

func (p *scriptPort) RecvSomeContext(ctx context.Context, buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.chunks) == 0 {
		return 0, p.final
	}
	n := copy(buf, p.chunks[0])
	if n < len(p.chunks[0]) {
		p.chunks[0] = p.chunks[0][n:]
	} else {
		p.chunks = p.chunks[1:]
	}
	return n, nil
}

func (p *scriptPort) written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.String()
}

func collect(t *testing.T, s *Service) ([]Line, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()
	var got []Line
	for l := range s.Lines() {
		got = append(got, l)
	}
	return got, <-errCh
}

func TestRun_FramesOnCRAndLF(t *testing.T) {
	p := &scriptPort{
		chunks: [][]byte{[]byte("he"), []byte("lp\r\n\n{\"a\""), []byte(":1}\rlast")},
		final:  io.EOF,
	}
	got, err := collect(t, New(p, Config{}))
	if !errors.Is(err, io.EOF) {
		t.Fatalf("err=%v", err)
	}
	want := []string{"help", `{"a":1}`, "last"}
	if len(got) != len(want) {
		t.Fatalf("lines=%+v", got)
	}
	for i := range want {
		if got[i].Text != want[i] || got[i].Overflow {
			t.Fatalf("line %d=%+v want %q", i, got[i], want[i])
		}
	}
	if p.written() != "" {
		t.Fatalf("echo without Echo: %q", p.written())
	}
}

func TestRun_OverflowDiscardsLine(t *testing.T) {
	long := strings.Repeat("x", 100)
	p := &scriptPort{
		chunks: [][]byte{[]byte(long + "\nok\n")},
		final:  io.EOF,
	}
	got, _ := collect(t, New(p, Config{MaxLine: 64}))
	if len(got) != 2 || !got[0].Overflow || got[1].Text != "ok" {
		t.Fatalf("lines=%+v", got)
	}
}

func TestRun_Echo(t *testing.T) {
	p := &scriptPort{chunks: [][]byte{[]byte("hi\r")}, final: io.EOF}
	collect(t, New(p, Config{Echo: true}))
	if p.written() != "hi\r\n" {
		t.Fatalf("echo=%q", p.written())
	}
}

func TestRun_TransientErrorsRetried(t *testing.T) {
	p := &flakyPort{fails: 3, data: []byte("help\n")}
	s := New(p, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go s.Run(ctx)
	select {
	case l := <-s.Lines():
		if l.Text != "help" {
			t.Fatalf("line=%+v", l)
		}
	case <-ctx.Done():
		t.Fatal("no line after transient errors")
	}
}

type flakyPort struct {
	mu    sync.Mutex
	fails int
	data  []byte
}

func (p *flakyPort) Write(b []byte) (int, error) { return len(b), nil }

func (p *flakyPort) RecvSomeContext(ctx context.Context, buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fails > 0 {
		p.fails--
		return 0, errors.New("framing error")
	}
	if len(p.data) == 0 {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	n := copy(buf, p.data)
	p.data = p.data[n:]
	return n, nil
}

func TestFromReader(t *testing.T) {
	pr, pw := io.Pipe()
	var out bytes.Buffer
	s := New(FromReader(pr, &out), Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	go func() {
		pw.Write([]byte("one\ntwo\n"))
		pw.Close()
	}()
	var got []string
	for l := range s.Lines() {
		got = append(got, l.Text)
	}
	if strings.Join(got, ",") != "one,two" {
		t.Fatalf("lines=%v", got)
	}
	if err := <-errCh; !errors.Is(err, io.EOF) {
		t.Fatalf("err=%v", err)
	}
	s.Write([]byte("x"))
	if out.String() != "x" {
		t.Fatalf("write=%q", out.String())
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	p := &flakyPort{}
	s := New(p, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("err=%v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
