//go:build !tinygo

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"lorabridge/drivers/stub"
	"lorabridge/services/bridge"
	"lorabridge/services/config"
)

func main() {
	boardName := flag.String("board", "host", "embedded board configuration")
	preset := flag.String("preset", "", "radio preset overriding the board's ("+fmt.Sprint(config.PresetNames())+")")
	quiet := flag.Bool("quiet", false, "start with diagnostic logging disabled")
	flag.Parse()

	board, err := config.Load(*boardName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *preset != "" {
		if _, err := config.Preset(*preset); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		board.Radio.Preset = *preset
	}
	if *quiet {
		board.Logging = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run(ctx, platform{
		board: board,
		radio: stub.New(),
		port:  bridge.FromReader(os.Stdin, os.Stdout),
	})
}
