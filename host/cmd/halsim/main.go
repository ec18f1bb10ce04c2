package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"asynchal/core"
	"asynchal/host/config"
	"asynchal/host/serial"
	"asynchal/host/sim"
)

var (
	configPath = flag.String("config", "", "Board configuration (JSON)")
	device     = flag.String("device", "", "Bridge UART 0 to this serial device")
	verbose    = flag.Bool("verbose", false, "Enable verbose output")
)

func main() {
	flag.Parse()

	fmt.Println("halsim - async peripheral simulator")
	fmt.Println("===================================")
	fmt.Println()

	cfg := config.DefaultBoardConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFile(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if *device != "" {
		cfg.UART.Device = *device
	}

	core.SetDebugWriter(func(s string) { fmt.Println(s) })
	core.SetDebugEnabled(*verbose)
	core.InitAsyncDebug()

	board, err := sim.NewBoard(cfg.SimOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to build board: %v\n", err)
		os.Exit(1)
	}
	cfg.Attach(board.I2C)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	byteTime := time.Duration(cfg.UART.ByteTimeUS) * time.Microsecond
	board.Run(ctx, time.Duration(cfg.SPI.ByteTimeUS)*time.Microsecond)

	if cfg.UART.Device != "" {
		portCfg := serial.DefaultConfig(cfg.UART.Device)
		portCfg.Baud = cfg.UART.Baud
		portCfg.Format = cfg.UART.Format
		port, err := serial.Open(portCfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer port.Close()

		fmt.Printf("UART 0 bridged to %s at %d baud %s\n", cfg.UART.Device, cfg.UART.Baud, cfg.UART.Format)
		go func() {
			if err := serial.NewBridge(port, board.UART, byteTime).Run(ctx); err != nil {
				core.DebugAsync("[BRIDGE] " + err.Error())
			}
		}()
	} else {
		fmt.Println("UART 0 in loopback")
		go board.UART.Run(ctx, byteTime, nil)
	}

	console, err := NewConsole(board, cfg, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		quit, err := console.Exec(ctx, scanner.Text())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		if quit {
			fmt.Println("Goodbye!")
			return
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}
