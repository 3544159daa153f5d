//go:build rp2040

package main

import (
	"context"
	"machine"
	"time"

	"lorabridge/drivers/sx1262"
	"lorabridge/services/config"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
)

const boardName = "pico"

// activeLow inverts a light wired to sink current.
type activeLow struct{ p machine.Pin }

func (a activeLow) Set(on bool) { a.p.Set(!on) }

func output(n int) machine.Pin {
	p := machine.Pin(n)
	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return p
}

func input(n int) machine.Pin {
	p := machine.Pin(n)
	p.Configure(machine.PinConfig{Mode: machine.PinInput})
	return p
}

func openUART(s config.SerialConfig) *uartx.UART {
	hw := uartx.UART0
	if s.UART == 1 {
		hw = uartx.UART1
	}
	_ = hw.Configure(uartx.UARTConfig{
		BaudRate: s.Baud,
		TX:       machine.Pin(s.TX),
		RX:       machine.Pin(s.RX),
	})
	if s.DataBits != 0 || s.StopBits != 0 {
		par := uartx.ParityNone
		switch s.Parity.String() {
		case "even":
			par = uartx.ParityEven
		case "odd":
			par = uartx.ParityOdd
		}
		db, sb := s.DataBits, s.StopBits
		if db == 0 {
			db = 8
		}
		if sb == 0 {
			sb = 1
		}
		_ = hw.SetFormat(db, sb, par)
	}
	return hw
}

func openRadio(r config.RadioConfig) *sx1262.Device {
	spi := machine.SPI0
	if r.SPI.Bus == 1 {
		spi = machine.SPI1
	}
	_ = spi.Configure(machine.SPIConfig{
		Frequency: r.SPI.Hz,
		SCK:       machine.Pin(r.SPI.SCK),
		SDO:       machine.Pin(r.SPI.SDO),
		SDI:       machine.Pin(r.SPI.SDI),
		Mode:      0,
	})

	nss := output(r.NSS)
	nss.High()
	dio1 := input(r.DIO1)
	return sx1262.New(spi, sx1262.Config{
		NSS:   nss,
		Reset: output(r.Reset),
		Busy:  input(r.Busy),
		DIO1:  dio1,
		Output: func(n int) sx1262.OutputPin {
			return output(n)
		},
		AttachIRQ: func(handler func()) error {
			return dio1.SetInterrupt(machine.PinRising, func(machine.Pin) { handler() })
		},
		DIO2RfSwitch: r.DIO2RfSwitch,
	})
}

func main() {
	// Give a USB host time to attach before the banner.
	time.Sleep(2 * time.Second)

	board, err := config.Load(boardName)
	if err != nil {
		println("[main] config:", err.Error())
		return
	}

	p := platform{
		board: board,
		radio: openRadio(board.Radio),
		port:  openUART(board.Serial),
	}
	if board.Indicator.Pin >= 0 {
		led := output(board.Indicator.Pin)
		if board.Indicator.ActiveLow {
			p.led = activeLow{led}
		} else {
			p.led = led
		}
	}

	state := run(context.Background(), p)
	println("[main] control loop exited, radio", state.String())
	select {}
}
