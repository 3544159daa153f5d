package protocol

import (
	"encoding/json"
	"io"
	"math"
	"sync"
	"sync/atomic"

	"lorabridge/codec"
	"lorabridge/radio"
	"lorabridge/types"
)

// EventWriter serialises outbound events as one JSON object per line.
//
// Respond and Packet always write. Log is the diagnostic path and is
// suppressed while logging is disabled.
type EventWriter struct {
	mu      sync.Mutex
	w       io.Writer
	logging atomic.Bool
}

func NewEventWriter(w io.Writer, logging bool) *EventWriter {
	e := &EventWriter{w: w}
	e.logging.Store(logging)
	return e
}

// Respond writes a command response.
func (e *EventWriter) Respond(level types.Level, msg string) {
	e.write(types.LogEvent{Type: types.EventLog, Level: level, Message: msg})
}

// Log writes a diagnostic when logging is enabled.
func (e *EventWriter) Log(level types.Level, msg string) {
	if !e.logging.Load() {
		return
	}
	e.Respond(level, msg)
}

// Packet writes a receive event. Frequency error is reported in kHz.
func (e *EventWriter) Packet(p radio.Packet) {
	e.write(RxEvent(p))
}

// RxEvent converts a packet into its wire form.
func RxEvent(p radio.Packet) types.RxEvent {
	return types.RxEvent{
		Type:           types.EventLoRaRx,
		RSSI:           int(math.Round(float64(p.RSSI))),
		SNR:            round2(float64(p.SNR)),
		FrequencyError: round2(float64(p.FrequencyErrorHz) / 1000),
		Payload:        codec.Encode(p.Payload),
	}
}

// SetLogging toggles the diagnostic path and reports a change with a
// STATUS event.
func (e *EventWriter) SetLogging(on bool) {
	if e.logging.Swap(on) == on {
		return
	}
	if on {
		e.Respond(types.LevelStatus, "Logging enabled")
	} else {
		e.Respond(types.LevelStatus, "Logging disabled")
	}
}

func (e *EventWriter) Logging() bool { return e.logging.Load() }

func (e *EventWriter) write(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	b = append(b, '\n')
	// A failed write has no channel left to be reported on.
	e.mu.Lock()
	_, _ = e.w.Write(b)
	e.mu.Unlock()
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
