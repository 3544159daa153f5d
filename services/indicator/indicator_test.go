package indicator

import (
	"context"
	"sync"
	"testing"
	"time"

	"lorabridge/bus"
	"lorabridge/types"
)

func TestMachine_PulsesReturnToHeartbeat(t *testing.T) {
	cases := []struct {
		mode  types.IndicatorMode
		steps int
	}{
		{types.IndicatorRxPulse, 10},
		{types.IndicatorTxPulse, 1},
	}
	for _, tc := range cases {
		var m Machine
		on, d := m.Set(tc.mode)
		if !on {
			t.Fatalf("%v: pulse must start lit", tc.mode)
		}
		if tc.mode == types.IndicatorTxPulse && d != 500*time.Millisecond {
			t.Fatalf("tx pulse duration=%v", d)
		}
		for i := 1; i < tc.steps; i++ {
			m.Next()
			if m.Mode() != tc.mode {
				t.Fatalf("%v left early at step %d", tc.mode, i)
			}
		}
		on, d = m.Next()
		if m.Mode() != types.IndicatorHeartbeat || on || d != 2*time.Second {
			t.Fatalf("%v: after pulse mode=%v on=%v d=%v", tc.mode, m.Mode(), on, d)
		}
	}
}

func TestMachine_RxPulseToggles(t *testing.T) {
	var m Machine
	on, _ := m.Set(types.IndicatorRxPulse)
	toggles := 0
	for m.Mode() == types.IndicatorRxPulse {
		next, d := m.Next()
		if m.Mode() != types.IndicatorRxPulse {
			break
		}
		if d != 50*time.Millisecond {
			t.Fatalf("step duration=%v", d)
		}
		if next != on {
			toggles++
		}
		on = next
	}
	if toggles != 9 {
		t.Fatalf("toggles=%d", toggles)
	}
}

func TestMachine_LoopingModes(t *testing.T) {
	for _, mode := range []types.IndicatorMode{types.IndicatorInit, types.IndicatorHeartbeat, types.IndicatorError} {
		var m Machine
		m.Set(mode)
		for i := 0; i < 20; i++ {
			m.Next()
		}
		if m.Mode() != mode {
			t.Fatalf("%v did not loop", mode)
		}
	}
	var m Machine
	if on, d := m.Set(types.IndicatorError); !on || d != 500*time.Millisecond {
		t.Fatalf("error blink on=%v d=%v", on, d)
	}
	if on, d := m.Set(types.IndicatorInit); !on || d != 200*time.Millisecond {
		t.Fatalf("init blink on=%v d=%v", on, d)
	}
}

func TestMachine_UnknownModeIsHeartbeat(t *testing.T) {
	var m Machine
	m.Set(types.IndicatorMode(99))
	if m.Mode() != types.IndicatorHeartbeat {
		t.Fatalf("mode=%v", m.Mode())
	}
}

type recPin struct {
	mu  sync.Mutex
	log []bool
}

func (p *recPin) Set(on bool) {
	p.mu.Lock()
	p.log = append(p.log, on)
	p.mu.Unlock()
}

func (p *recPin) snapshot() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bool(nil), p.log...)
}

func TestRun_FollowsPublishedMode(t *testing.T) {
	b := bus.NewBus(4)
	pub := NewPublisher(b.NewConnection("radio"))
	pin := &recPin{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Run(ctx, b.NewConnection("led"), pin)
		close(done)
	}()

	pub.TxPulse()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		// Init starts lit, the tx pulse is lit, then heartbeat goes dark.
		if l := pin.snapshot(); len(l) >= 3 && !l[len(l)-1] {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	l := pin.snapshot()
	if len(l) < 3 {
		t.Fatalf("pin log=%v", l)
	}
	if l[len(l)-1] {
		t.Fatal("light left on after stop")
	}
}

func TestPublisher_Retained(t *testing.T) {
	b := bus.NewBus(4)
	pub := NewPublisher(b.NewConnection("radio"))
	pub.Error()

	sub := b.NewConnection("late").Subscribe(TopicMode)
	select {
	case msg := <-sub.Channel():
		if msg.Payload.(types.IndicatorMode) != types.IndicatorError {
			t.Fatalf("payload=%v", msg.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("no retained mode")
	}
}
