// Package indicator drives the status light. The controller side publishes
// modes on the bus through Publisher; Run consumes them and plays the
// matching blink pattern on a pin.
package indicator

import (
	"context"
	"time"

	"lorabridge/bus"
	"lorabridge/types"
)

// TopicMode carries the retained current types.IndicatorMode.
var TopicMode = bus.Topic{"indicator", "mode"}

// Pin is an output the light is wired to. machine.Pin satisfies it.
type Pin interface{ Set(on bool) }

// ---- publisher ----

// Publisher implements radio.Indicator over the bus.
type Publisher struct{ conn *bus.Connection }

func NewPublisher(conn *bus.Connection) *Publisher { return &Publisher{conn: conn} }

func (p *Publisher) publish(m types.IndicatorMode) {
	p.conn.Publish(p.conn.NewMessage(TopicMode, m, true))
}

func (p *Publisher) Init()      { p.publish(types.IndicatorInit) }
func (p *Publisher) Heartbeat() { p.publish(types.IndicatorHeartbeat) }
func (p *Publisher) Error()     { p.publish(types.IndicatorError) }
func (p *Publisher) RxPulse()   { p.publish(types.IndicatorRxPulse) }
func (p *Publisher) TxPulse()   { p.publish(types.IndicatorTxPulse) }

// ---- patterns ----

type step struct {
	on bool
	d  time.Duration
}

type pattern struct {
	steps []step
	loop  bool // otherwise fall back to heartbeat when done
}

var patterns = map[types.IndicatorMode]pattern{
	types.IndicatorInit: {loop: true, steps: []step{
		{true, 200 * time.Millisecond}, {false, 200 * time.Millisecond},
	}},
	types.IndicatorHeartbeat: {loop: true, steps: []step{
		{false, 2 * time.Second},
		{true, 100 * time.Millisecond}, {false, 100 * time.Millisecond}, {true, 100 * time.Millisecond},
	}},
	types.IndicatorRxPulse: {steps: []step{
		{true, 50 * time.Millisecond}, {false, 50 * time.Millisecond},
		{true, 50 * time.Millisecond}, {false, 50 * time.Millisecond},
		{true, 50 * time.Millisecond}, {false, 50 * time.Millisecond},
		{true, 50 * time.Millisecond}, {false, 50 * time.Millisecond},
		{true, 50 * time.Millisecond}, {false, 50 * time.Millisecond},
	}},
	types.IndicatorTxPulse: {steps: []step{
		{true, 500 * time.Millisecond},
	}},
	types.IndicatorError: {loop: true, steps: []step{
		{true, 500 * time.Millisecond}, {false, 500 * time.Millisecond},
	}},
}

// Machine walks the pattern of the current mode. It has no clock; the
// caller waits the returned duration before calling Next.
type Machine struct {
	mode types.IndicatorMode
	idx  int
}

func (m *Machine) Mode() types.IndicatorMode { return m.mode }

// Set switches mode and returns the first level and its duration.
// Unknown modes are treated as heartbeat.
func (m *Machine) Set(mode types.IndicatorMode) (bool, time.Duration) {
	if _, ok := patterns[mode]; !ok {
		mode = types.IndicatorHeartbeat
	}
	m.mode, m.idx = mode, 0
	s := patterns[mode].steps[0]
	return s.on, s.d
}

// Next advances one step.
func (m *Machine) Next() (bool, time.Duration) {
	p := patterns[m.mode]
	m.idx++
	if m.idx >= len(p.steps) {
		if !p.loop {
			return m.Set(types.IndicatorHeartbeat)
		}
		m.idx = 0
	}
	s := p.steps[m.idx]
	return s.on, s.d
}

// ---- service ----

// Run plays modes published on TopicMode until ctx is cancelled. It starts
// in the init pattern and leaves the light off on exit.
func Run(ctx context.Context, conn *bus.Connection, pin Pin) {
	sub := conn.Subscribe(TopicMode)
	defer conn.Unsubscribe(sub)

	var m Machine
	on, d := m.Set(types.IndicatorInit)
	pin.Set(on)
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			pin.Set(false)
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			mode, ok := msg.Payload.(types.IndicatorMode)
			if !ok {
				continue
			}
			on, d = m.Set(mode)
		case <-timer.C:
			on, d = m.Next()
		}
		pin.Set(on)
		resetTimer(timer, d)
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
