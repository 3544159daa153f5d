// Command lorahost is an operator console for a LoRa bridge on a serial
// port. It accepts shorthand commands and prints bridge events as text.
package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"lorabridge/host/console"
	"lorabridge/host/serial"
)

func main() {
	cfgPath := flag.String("config", "", "YAML configuration file")
	device := flag.String("device", "", "serial device (overrides config)")
	baud := flag.Int("baud", 0, "baud rate (overrides config)")
	raw := flag.Bool("raw", false, "print bridge lines without formatting")
	capture := flag.String("capture", "", "capture log file (overrides config)")
	exec := flag.String("e", "", "send one command, print replies for -wait, then exit")
	wait := flag.Duration("wait", 2*time.Second, "how long -e waits for replies")
	flag.Parse()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		fatal(err)
	}
	if *device != "" {
		cfg.Serial.Device = *device
	}
	if *baud > 0 {
		cfg.Serial.Baud = *baud
	}
	if *raw {
		cfg.Raw = true
	}
	if *capture != "" {
		cfg.Capture.File = *capture
	}

	port, err := serial.Open(cfg.Serial)
	if err != nil {
		fatal(err)
	}
	defer port.Close()
	// Drop whatever the bridge printed before we attached.
	if err := port.Flush(); err != nil {
		fatal(err)
	}

	s := &session{port: port, out: os.Stdout, log: cfg.Capture.captureWriter(), raw: cfg.Raw}
	defer s.log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go s.readLoop(ctx)

	if *exec != "" {
		if err := s.submit(*exec); err != nil {
			fatal(err)
		}
		select {
		case <-ctx.Done():
		case <-time.After(*wait):
		}
		return
	}

	pc := port.Config()
	fmt.Fprintf(os.Stdout, "connected to %s at %d baud (type ? for shorthand, quit to exit)\n", pc.Device, pc.Baud)
	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case l, ok := <-lines:
			if !ok {
				return
			}
			switch strings.TrimSpace(l) {
			case "quit", "exit":
				return
			case "?":
				s.print(console.Help())
				continue
			}
			if err := s.submit(l); err != nil {
				s.print("error: " + err.Error())
			}
		}
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "lorahost:", err)
	os.Exit(1)
}

// linePort is the bridge side of a session; *serial.Port satisfies it.
type linePort interface {
	io.Reader
	WriteLine(line string) error
}

var _ linePort = (*serial.Port)(nil)

// session multiplexes the serial port, the terminal and the capture log.
type session struct {
	port linePort
	out  io.Writer
	log  io.WriteCloser
	raw  bool

	mu sync.Mutex
}

func (s *session) print(line string) {
	s.mu.Lock()
	fmt.Fprintln(s.out, line)
	s.mu.Unlock()
}

func (s *session) capture(dir, line string) {
	s.mu.Lock()
	fmt.Fprintf(s.log, "%s %s %s\n", time.Now().Format(time.RFC3339Nano), dir, line)
	s.mu.Unlock()
}

// submit translates operator input and writes it to the bridge.
func (s *session) submit(input string) error {
	line, err := console.Translate(input)
	if err != nil || line == "" {
		return err
	}
	s.capture(">", line)
	return s.port.WriteLine(line)
}

// readLoop splits bridge output into lines. A read that times out reports
// io.EOF or zero bytes and is retried.
func (s *session) readLoop(ctx context.Context) {
	buf := make([]byte, 256)
	var pending []byte
	for ctx.Err() == nil {
		n, err := s.port.Read(buf)
		pending = append(pending, buf[:n]...)
		for {
			i := bytes.IndexByte(pending, '\n')
			if i < 0 {
				break
			}
			s.handle(string(bytes.TrimRight(pending[:i], "\r")))
			pending = pending[i+1:]
		}
		if err != nil && !errors.Is(err, io.EOF) {
			s.print("serial: " + err.Error())
			return
		}
	}
}

func (s *session) handle(line string) {
	if line == "" {
		return
	}
	s.capture("<", line)
	if s.raw {
		s.print(line)
		return
	}
	s.print(console.Format(line))
}
