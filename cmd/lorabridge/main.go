// Command lorabridge bridges a host serial link to a LoRa radio. The
// platform files supply the radio driver, the link port and the light;
// everything above them is shared.
package main

import (
	"context"

	"lorabridge/bus"
	"lorabridge/protocol"
	"lorabridge/radio"
	"lorabridge/services/bridge"
	"lorabridge/services/config"
	"lorabridge/services/indicator"
	"lorabridge/services/node"
)

const version = "0.3.0"

type platform struct {
	board config.Board
	radio radio.Driver
	port  bridge.Port
	led   indicator.Pin // nil when the board has no light
}

func run(ctx context.Context, p platform) radio.State {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b := bus.NewBus(4)
	ind := indicator.NewPublisher(b.NewConnection("radio"))
	if p.led != nil {
		led := b.NewConnection("indicator")
		defer led.Disconnect()
		go indicator.Run(ctx, led, p.led)
	}

	link := bridge.New(p.port, p.board.Serial.Config)
	go func() { _ = link.Run(ctx) }()

	out := protocol.NewEventWriter(link, p.board.Logging)
	ctrl := radio.NewController(p.radio, radio.Options{
		Defaults:    p.board.RadioDefaults(),
		RxEnablePin: p.board.Radio.RxEnable,
		TxEnablePin: p.board.Radio.TxEnable,
		TCXOVoltage: p.board.Radio.TCXOVoltage,
		Indicator:   ind,
		Emitter:     out,
	})

	return node.Run(ctx, node.Options{
		Controller: ctrl,
		Dispatcher: protocol.NewDispatcher(ctrl, out),
		Lines:      link.Lines(),
		Indicator:  ind,
		Banner:     "LoRa bridge " + version + " (" + p.board.Name + ")",
	})
}
