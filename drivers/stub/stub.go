// Package stub is an in-memory radio.Driver for host builds and tests.
//
// It records every call, lets a test fail any named call, and injects
// received frames by firing the registered interrupt action the way the
// real transceiver does. A successful Transmit also fires the action,
// mirroring the shared tx/rx done interrupt.
package stub

import (
	"errors"
	"sync"

	"lorabridge/radio"
)

// Call names used in the log and with FailOn.
const (
	CallBegin        = "begin"
	CallStartReceive = "startReceive"
	CallStandby      = "standby"
	CallFrequency    = "setFrequency"
	CallBandwidth    = "setBandwidth"
	CallSF           = "setSpreadingFactor"
	CallCR           = "setCodingRate"
	CallSync         = "setSyncWord"
	CallPower        = "setOutputPower"
	CallPreamble     = "setPreambleLength"
	CallReadData     = "readData"
	CallTransmit     = "transmit"
)

// ErrInjected is the default error returned by FailOn.
var ErrInjected = errors.New("stub: injected failure")

type rxFrame struct {
	data     []byte
	length   int
	forceLen bool
	err      error
	rssi     float32
	snr      float32
	freqErrH float32
}

// Radio is a fake transceiver.
type Radio struct {
	mu sync.Mutex

	calls   []string
	fail    map[string]error
	action  func()
	rxPin   int
	txPin   int
	params  radio.Params
	txLog   [][]byte
	last    rxFrame
	pending []rxFrame

	// Live parameters as written by the setters.
	FrequencyMHz    float64
	BandwidthKHz    float64
	SpreadingFactor uint8
	CodingRate      uint8
	SyncWord        uint8
	OutputPowerDBm  int8
	PreambleLength  uint16
	Receiving       bool
}

func New() *Radio { return &Radio{fail: map[string]error{}, rxPin: -1, txPin: -1} }

// FailOn makes the named call return err (ErrInjected when nil) until
// cleared with ClearFailures.
func (r *Radio) FailOn(call string, err error) {
	if err == nil {
		err = ErrInjected
	}
	r.mu.Lock()
	r.fail[call] = err
	r.mu.Unlock()
}

func (r *Radio) ClearFailures() {
	r.mu.Lock()
	r.fail = map[string]error{}
	r.mu.Unlock()
}

// Calls returns a copy of the call log.
func (r *Radio) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Count returns how many times call was made.
func (r *Radio) Count(call string) int {
	n := 0
	for _, c := range r.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (r *Radio) ResetCalls() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

// TxLog returns copies of transmitted frames.
func (r *Radio) TxLog() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.txLog))
	for i, b := range r.txLog {
		out[i] = append([]byte(nil), b...)
	}
	return out
}

func (r *Radio) SwitchPins() (rx, tx int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rxPin, r.txPin
}

func (r *Radio) BeginParams() radio.Params {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.params
}

// InjectPacket queues a received frame and fires the interrupt action.
func (r *Radio) InjectPacket(data []byte, rssi, snr, freqErrHz float32) {
	r.inject(rxFrame{data: append([]byte(nil), data...), rssi: rssi, snr: snr, freqErrH: freqErrHz})
}

// InjectCRCError queues a frame whose ReadData reports a checksum mismatch.
func (r *Radio) InjectCRCError(data []byte) {
	r.inject(rxFrame{data: append([]byte(nil), data...), err: radio.ErrCRCMismatch})
}

// InjectLength queues a frame reporting an arbitrary length.
func (r *Radio) InjectLength(n int) {
	r.inject(rxFrame{length: n, forceLen: true})
}

// Interrupt fires the registered action without queueing a frame.
func (r *Radio) Interrupt() {
	r.mu.Lock()
	fn := r.action
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (r *Radio) inject(f rxFrame) {
	r.mu.Lock()
	r.pending = append(r.pending, f)
	fn := r.action
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (r *Radio) record(call string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	return r.fail[call]
}

// ---- radio.Driver ----

func (r *Radio) Begin(p radio.Params) error {
	if err := r.record(CallBegin); err != nil {
		return err
	}
	r.mu.Lock()
	r.params = p
	r.FrequencyMHz = p.FrequencyMHz
	r.BandwidthKHz = p.BandwidthKHz
	r.SpreadingFactor = p.SpreadingFactor
	r.CodingRate = p.CodingRate
	r.SyncWord = p.SyncWord
	r.OutputPowerDBm = p.OutputPowerDBm
	r.PreambleLength = p.PreambleLength
	r.mu.Unlock()
	return nil
}

func (r *Radio) SetRfSwitchPins(rx, tx int) {
	r.mu.Lock()
	r.rxPin, r.txPin = rx, tx
	r.mu.Unlock()
}

func (r *Radio) SetPacketReceivedAction(fn func()) {
	r.mu.Lock()
	r.action = fn
	r.mu.Unlock()
}

func (r *Radio) StartReceive() error {
	if err := r.record(CallStartReceive); err != nil {
		return err
	}
	r.mu.Lock()
	r.Receiving = true
	r.mu.Unlock()
	return nil
}

func (r *Radio) Standby() error {
	if err := r.record(CallStandby); err != nil {
		return err
	}
	r.mu.Lock()
	r.Receiving = false
	r.mu.Unlock()
	return nil
}

func (r *Radio) set(call string, apply func()) error {
	if err := r.record(call); err != nil {
		return err
	}
	r.mu.Lock()
	apply()
	r.mu.Unlock()
	return nil
}

func (r *Radio) SetFrequency(mhz float64) error {
	return r.set(CallFrequency, func() { r.FrequencyMHz = mhz })
}
func (r *Radio) SetBandwidth(khz float64) error {
	return r.set(CallBandwidth, func() { r.BandwidthKHz = khz })
}
func (r *Radio) SetSpreadingFactor(sf uint8) error {
	return r.set(CallSF, func() { r.SpreadingFactor = sf })
}
func (r *Radio) SetCodingRate(cr uint8) error {
	return r.set(CallCR, func() { r.CodingRate = cr })
}
func (r *Radio) SetSyncWord(sw uint8) error {
	return r.set(CallSync, func() { r.SyncWord = sw })
}
func (r *Radio) SetOutputPower(dbm int8) error {
	return r.set(CallPower, func() { r.OutputPowerDBm = dbm })
}
func (r *Radio) SetPreambleLength(n uint16) error {
	return r.set(CallPreamble, func() { r.PreambleLength = n })
}

// PacketLength reports the oldest queued frame and makes it current.
func (r *Radio) PacketLength() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) == 0 {
		r.last = rxFrame{}
		return 0
	}
	r.last = r.pending[0]
	r.pending = r.pending[1:]
	if r.last.forceLen {
		return r.last.length
	}
	return len(r.last.data)
}

func (r *Radio) ReadData(buf []byte) error {
	if err := r.record(CallReadData); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copy(buf, r.last.data)
	return r.last.err
}

func (r *Radio) Transmit(data []byte) error {
	if err := r.record(CallTransmit); err != nil {
		return err
	}
	r.mu.Lock()
	r.txLog = append(r.txLog, append([]byte(nil), data...))
	r.Receiving = false
	fn := r.action
	r.mu.Unlock()
	if fn != nil {
		fn() // tx done
	}
	return nil
}

func (r *Radio) RSSI() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last.rssi
}

func (r *Radio) SNR() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last.snr
}

func (r *Radio) FrequencyError() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last.freqErrH
}

var _ radio.Driver = (*Radio)(nil)
