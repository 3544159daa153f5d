// Package serial opens the bridge's serial device on a host computer.
package serial

import (
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// Config holds serial port configuration.
type Config struct {
	// Device path (e.g. "/dev/ttyACM0", "COM3").
	Device string `yaml:"device"`
	// Baud rate; USB CDC links ignore it.
	Baud int `yaml:"baud"`
	// ReadTimeout in milliseconds (0 = blocking).
	ReadTimeout int `yaml:"read_timeout_ms"`
}

// DefaultConfig returns the bridge firmware's link settings.
func DefaultConfig(device string) Config {
	return Config{Device: device, Baud: 115200, ReadTimeout: 100}
}

// Port is an open serial device.
type Port struct {
	port *serial.Port
	cfg  Config
}

var _ io.ReadWriteCloser = (*Port)(nil)

// Open opens the device described by cfg.
func Open(cfg Config) (*Port, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("serial: no device configured")
	}
	if cfg.Baud <= 0 {
		cfg.Baud = 115200
	}
	p, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}
	return &Port{port: p, cfg: cfg}, nil
}

// Read returns 0, nil when the read timeout expires without data.
func (p *Port) Read(b []byte) (int, error) { return p.port.Read(b) }

func (p *Port) Write(b []byte) (int, error) { return p.port.Write(b) }

// WriteLine writes line followed by a newline.
func (p *Port) WriteLine(line string) error {
	_, err := p.port.Write(append([]byte(line), '\n'))
	return err
}

func (p *Port) Close() error {
	if p.port == nil {
		return nil
	}
	return p.port.Close()
}

// Flush discards buffered data.
func (p *Port) Flush() error { return p.port.Flush() }

// Config returns the settings the port was opened with.
func (p *Port) Config() Config { return p.cfg }
