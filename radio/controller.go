package radio

import (
	"errors"
	"strconv"
	"sync/atomic"

	"lorabridge/errcode"
	"lorabridge/types"
)

// State of the controller for this boot.
type State int32

const (
	Uninitialized State = iota
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "uninitialized"
}

// Packet is one received frame with its link metrics.
type Packet struct {
	Payload          []byte
	RSSI             float32
	SNR              float32
	FrequencyErrorHz float32
}

// Emitter receives controller output: diagnostics and packets.
type Emitter interface {
	Log(level types.Level, msg string)
	Packet(p Packet)
}

// Indicator is the status light as driven by the controller.
type Indicator interface {
	Heartbeat()
	Error()
	RxPulse()
	TxPulse()
}

// Options wires a Controller. Nil Indicator/Emitter are replaced by no-ops.
type Options struct {
	Defaults    Configuration
	RxEnablePin int
	TxEnablePin int
	TCXOVoltage float32
	Signal      *ReadySignal
	Indicator   Indicator
	Emitter     Emitter
}

// Controller owns the driver, the configuration store and the receive
// signal. All methods except Signal().Raise run on the control loop.
type Controller struct {
	drv   Driver
	store *Store
	sig   *ReadySignal
	ind   Indicator
	out   Emitter
	opts  Options
	state atomic.Int32

	buf [MaxPayload]byte
}

func NewController(drv Driver, opts Options) *Controller {
	if opts.Signal == nil {
		opts.Signal = NewReadySignal()
	}
	if opts.Indicator == nil {
		opts.Indicator = nopIndicator{}
	}
	if opts.Emitter == nil {
		opts.Emitter = nopEmitter{}
	}
	return &Controller{
		drv:   drv,
		store: NewStore(opts.Defaults),
		sig:   opts.Signal,
		ind:   opts.Indicator,
		out:   opts.Emitter,
		opts:  opts,
	}
}

func (c *Controller) State() State          { return State(c.state.Load()) }
func (c *Controller) Signal() *ReadySignal  { return c.sig }
func (c *Controller) Config() Configuration { return c.store.Current() }
func (c *Controller) setState(s State)      { c.state.Store(int32(s)) }

// Initialize loads the defaults, brings the radio up and starts receiving.
// Any failure leaves the controller Failed for the rest of the boot.
func (c *Controller) Initialize() State {
	if s := c.State(); s != Uninitialized {
		return s
	}
	c.store.Commit(c.opts.Defaults)
	cfg := c.store.Current()

	if err := c.drv.Begin(cfg.Params(c.opts.TCXOVoltage)); err != nil {
		return c.fail("radio init failed", err)
	}
	c.drv.SetRfSwitchPins(c.opts.RxEnablePin, c.opts.TxEnablePin)
	c.drv.SetPacketReceivedAction(c.sig.Raise)
	if err := c.drv.StartReceive(); err != nil {
		return c.fail("start receive failed", err)
	}
	c.setState(Ready)
	c.ind.Heartbeat()
	c.out.Log(types.LevelInfo, "radio initialised")
	return Ready
}

func (c *Controller) fail(msg string, err error) State {
	c.setState(Failed)
	c.ind.Error()
	c.out.Log(types.LevelError, msg+": "+err.Error())
	return Failed
}

func (c *Controller) notReady(op string) error {
	return &errcode.E{C: errcode.NotReady, Op: op, Msg: "radio is " + c.State().String()}
}

type step struct {
	name string
	fn   func() error
}

// Apply pushes cfg to the radio in a fixed order and commits it only when
// every write succeeded. The first failure stops the sequence; the store
// keeps its previous value and a receive restart is attempted.
func (c *Controller) Apply(cfg Configuration) error {
	if c.State() != Ready {
		return c.notReady("apply")
	}
	d := c.drv
	steps := [...]step{
		{"standby", d.Standby},
		{"set frequency", func() error { return d.SetFrequency(cfg.WorkingFrequencyMHz()) }},
		{"set bandwidth", func() error { return d.SetBandwidth(cfg.BandwidthKHz) }},
		{"set spreading factor", func() error { return d.SetSpreadingFactor(cfg.SpreadingFactor) }},
		{"set coding rate", func() error { return d.SetCodingRate(cfg.CodingRate) }},
		{"set sync word", func() error { return d.SetSyncWord(cfg.SyncWord) }},
		{"set output power", func() error { return d.SetOutputPower(cfg.OutputPowerDBm) }},
		{"set preamble length", func() error { return d.SetPreambleLength(cfg.PreambleLength) }},
		{"start receive", d.StartReceive},
	}
	for i, s := range steps {
		err := s.fn()
		if err == nil {
			continue
		}
		c.ind.Error()
		failed := driverErr("apply", s.name+" failed", err)
		if i == len(steps)-1 {
			return failed
		}
		if rerr := d.StartReceive(); rerr != nil {
			return errcode.Join(failed, driverErr("apply", "start receive failed", rerr))
		}
		return failed
	}
	c.store.Commit(cfg)
	return nil
}

// Transmit sends one frame. Length is checked before the driver is
// touched. After a transmit attempt the receive signal is cleared (tx done
// raises the same interrupt) and receive is always restarted.
func (c *Controller) Transmit(payload []byte) error {
	switch {
	case len(payload) == 0:
		return &errcode.E{C: errcode.InvalidPayload, Op: "transmit", Msg: "payload is empty"}
	case len(payload) > MaxPayload:
		return &errcode.E{C: errcode.InvalidPayload, Op: "transmit",
			Msg: "payload too long (" + strconv.Itoa(len(payload)) + " > " + strconv.Itoa(MaxPayload) + ")"}
	}
	if c.State() != Ready {
		return c.notReady("transmit")
	}

	var txErr, rxErr error
	if err := c.drv.Transmit(payload); err != nil {
		txErr = driverErr("transmit", "transmit failed", err)
	}
	c.sig.Clear()
	if txErr != nil {
		c.ind.Error()
	} else {
		c.ind.TxPulse()
	}
	if err := c.drv.StartReceive(); err != nil {
		rxErr = driverErr("transmit", "start receive failed", err)
		c.ind.Error()
	}
	return errcode.Join(txErr, rxErr)
}

// Poll drains a pending packet if the controller is ready. It reports
// whether a drain ran.
func (c *Controller) Poll() bool {
	if c.State() != Ready || !c.sig.Pending() {
		return false
	}
	c.Drain()
	return true
}

// Drain reads the last frame and emits it, then clears the signal and
// restarts receive whatever the outcome of the read.
func (c *Controller) Drain() {
	n := c.drv.PacketLength()
	switch {
	case n <= 0 || n > MaxPayload:
		err := &errcode.E{C: errcode.BadLength, Msg: "invalid packet length: " + strconv.Itoa(n)}
		c.out.Log(types.LevelError, err.Error())
	default:
		buf := c.buf[:n]
		err := c.drv.ReadData(buf)
		switch {
		case err == nil:
			c.ind.RxPulse()
			c.out.Packet(Packet{
				Payload:          append([]byte(nil), buf...),
				RSSI:             c.drv.RSSI(),
				SNR:              c.drv.SNR(),
				FrequencyErrorHz: c.drv.FrequencyError(),
			})
		case errors.Is(err, ErrCRCMismatch):
			c.out.Log(types.LevelWarn, "CRC error")
		default:
			c.out.Log(types.LevelWarn, "receive failed: "+err.Error())
		}
	}

	c.sig.Clear()
	if err := c.drv.StartReceive(); err != nil {
		c.out.Log(types.LevelError, "start receive failed: "+err.Error())
		c.ind.Error()
	}
}

func driverErr(op, msg string, err error) error {
	return &errcode.E{C: errcode.MapDriverErr(err), Op: op, Msg: msg, Err: err}
}

type nopIndicator struct{}

func (nopIndicator) Heartbeat() {}
func (nopIndicator) Error()     {}
func (nopIndicator) RxPulse()   {}
func (nopIndicator) TxPulse()   {}

type nopEmitter struct{}

func (nopEmitter) Log(types.Level, string) {}
func (nopEmitter) Packet(Packet)           {}
