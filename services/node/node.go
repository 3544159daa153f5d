// Package node runs the bridge control loop: it brings the radio up, then
// serves host lines and drains received packets on one goroutine.
package node

import (
	"context"
	"time"

	"lorabridge/protocol"
	"lorabridge/radio"
	"lorabridge/services/bridge"
	"lorabridge/types"
)

const defaultPoll = 10 * time.Millisecond

// Options wires the loop. Controller, Dispatcher and Lines are required.
type Options struct {
	Controller *radio.Controller
	Dispatcher *protocol.Dispatcher
	Lines      <-chan bridge.Line
	// Indicator is told when boot starts; nil skips it.
	Indicator interface{ Init() }
	// Banner is written before the radio is initialised.
	Banner string
	// PollInterval bounds how long a raised signal can wait when its
	// wake-up was coalesced. Default 10 ms.
	PollInterval time.Duration
}

// Run blocks until ctx is cancelled or the line channel closes.
func Run(ctx context.Context, o Options) radio.State {
	out := o.Dispatcher.Events()
	if o.Banner != "" {
		out.Respond(types.LevelInfo, o.Banner)
	}
	if o.Indicator != nil {
		o.Indicator.Init()
	}

	state := o.Controller.Initialize()
	if state == radio.Ready {
		out.Log(types.LevelInfo, "System ready")
	} else {
		out.Respond(types.LevelError, "Radio not ready; configuration and transmit are unavailable")
	}

	poll := o.PollInterval
	if poll <= 0 {
		poll = defaultPoll
	}
	tick := time.NewTicker(poll)
	defer tick.Stop()

	sig := o.Controller.Signal()
	for {
		select {
		case <-ctx.Done():
			return state
		case l, ok := <-o.Lines:
			if !ok {
				return state
			}
			if l.Overflow {
				out.Respond(types.LevelWarn, "Input line too long, discarded")
			} else {
				o.Dispatcher.HandleLine(l.Text)
			}
		case <-sig.Wake():
		case <-tick.C:
		}
		o.Controller.Poll()
	}
}
