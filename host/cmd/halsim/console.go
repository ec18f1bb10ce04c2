package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"tinygo.org/x/drivers/shtc3"

	"asynchal/core"
	"asynchal/host/config"
	"asynchal/host/sim"
	"asynchal/x/mathx"
)

// Console executes interactive commands against a simulated board
type Console struct {
	board   *sim.Board
	cfg     *config.BoardConfig
	spi     *core.ExclusiveDevice
	out     io.Writer
	timeout time.Duration
}

var errUsage = errors.New("usage")

// maxReadLen caps console reads at one register page
const maxReadLen = 256

// NewConsole binds the console's SPI device and output
func NewConsole(board *sim.Board, cfg *config.BoardConfig, out io.Writer) (*Console, error) {
	dev, err := core.NewExclusiveDevice(board.SPIBus, cfg.SPIDeviceConfig(), board.Delay)
	if err != nil {
		return nil, fmt.Errorf("failed to configure spi device: %w", err)
	}
	return &Console{
		board:   board,
		cfg:     cfg,
		spi:     dev,
		out:     out,
		timeout: 2 * time.Second,
	}, nil
}

// Exec runs one command line. It reports true when the console should exit.
func (c *Console) Exec(ctx context.Context, line string) (bool, error) {
	args, err := shlex.Split(line)
	if err != nil {
		return false, fmt.Errorf("failed to parse command: %w", err)
	}
	if len(args) == 0 {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	switch args[0] {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		c.printHelp()
		return false, nil
	case "delay":
		return false, c.cmdDelay(ctx, args[1:])
	case "uart":
		return false, c.cmdUART(ctx, args[1:])
	case "spi":
		return false, c.cmdSPI(ctx, args[1:])
	case "i2c":
		return false, c.cmdI2C(ctx, args[1:])
	case "shtc3":
		return false, c.cmdSHTC3(ctx)
	case "timers":
		c.cmdTimers()
		return false, nil
	case "dump":
		core.DumpTimingRing()
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %q (type 'help' for available commands)", args[0])
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, "\nAvailable commands:")
	fmt.Fprintln(c.out, "  delay <ms>                  - Sleep on the machine timer")
	fmt.Fprintln(c.out, "  uart write <text>           - Transmit text on UART 0")
	fmt.Fprintln(c.out, "  uart read [n]               - Read up to n bytes from UART 0")
	fmt.Fprintln(c.out, "  spi xfer <hex>              - Full-duplex transfer on SPI 0")
	fmt.Fprintln(c.out, "  i2c read <addr> <reg> <n>   - Read n registers")
	fmt.Fprintln(c.out, "  i2c write <addr> <bytes...> - Write bytes")
	fmt.Fprintln(c.out, "  shtc3                       - Measure with the SHTC3 driver")
	fmt.Fprintln(c.out, "  timers                      - Show timer queue state")
	fmt.Fprintln(c.out, "  dump                        - Dump the timing ring")
	fmt.Fprintln(c.out, "  quit/exit/q                 - Exit the program")
	fmt.Fprintln(c.out)
}

func (c *Console) cmdDelay(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: delay <ms>", errUsage)
	}
	ms, err := strconv.ParseUint(args[0], 0, 32)
	if err != nil {
		return fmt.Errorf("bad delay %q: %w", args[0], err)
	}

	start := c.board.Timer.Now()
	if err := c.board.Delay.DelayMs(ctx, uint32(ms)); err != nil {
		return fmt.Errorf("delay failed: %w", err)
	}
	elapsed := c.board.Timer.Now() - start
	fmt.Fprintf(c.out, "slept %d ticks (%d us)\n", elapsed, core.TicksToUS(elapsed, c.board.Timer.Frequency()))
	return nil
}

func (c *Console) cmdUART(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: uart write <text> | uart read [n]", errUsage)
	}

	switch args[0] {
	case "write":
		text := strings.Join(args[1:], " ")
		if _, err := c.board.Serial.Writer(ctx).Write([]byte(text)); err != nil {
			return fmt.Errorf("uart write failed: %w", err)
		}
		if err := c.board.Serial.Flush(ctx); err != nil {
			return fmt.Errorf("uart flush failed: %w", err)
		}
		fmt.Fprintf(c.out, "wrote %d bytes\n", len(text))
		return nil

	case "read":
		n := 64
		if len(args) > 1 {
			v, err := strconv.Atoi(args[1])
			if err != nil || v <= 0 {
				return fmt.Errorf("bad length %q", args[1])
			}
			n = mathx.Min(v, maxReadLen)
		}
		buf := make([]byte, n)
		got, err := c.board.Serial.Read(ctx, buf)
		if err != nil {
			return fmt.Errorf("uart read failed: %w", err)
		}
		fmt.Fprintf(c.out, "read %d bytes: %q\n", got, buf[:got])
		return nil
	}
	return fmt.Errorf("%w: uart write <text> | uart read [n]", errUsage)
}

func (c *Console) cmdSPI(ctx context.Context, args []string) error {
	if len(args) < 2 || args[0] != "xfer" {
		return fmt.Errorf("%w: spi xfer <hex>", errUsage)
	}
	out, err := hex.DecodeString(strings.Join(args[1:], ""))
	if err != nil {
		return fmt.Errorf("bad hex data: %w", err)
	}

	in := make([]byte, len(out))
	if err := c.spi.Transaction(ctx, core.SPITransfer(in, out)); err != nil {
		return fmt.Errorf("spi transfer failed: %w", err)
	}
	fmt.Fprintf(c.out, "rx: %s\n", hex.EncodeToString(in))
	return nil
}

func (c *Console) cmdI2C(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: i2c read <addr> <reg> <n> | i2c write <addr> <bytes...>", errUsage)
	}
	addr, err := parseByte(args[1])
	if err != nil {
		return err
	}

	switch args[0] {
	case "read":
		if len(args) != 4 {
			return fmt.Errorf("%w: i2c read <addr> <reg> <n>", errUsage)
		}
		reg, err := parseByte(args[2])
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(args[3])
		if err != nil || n <= 0 {
			return fmt.Errorf("bad length %q", args[3])
		}
		buf := make([]byte, mathx.Min(n, maxReadLen))
		if err := c.board.I2CBus.WriteRead(ctx, core.I2CAddress(addr), []byte{reg}, buf); err != nil {
			return fmt.Errorf("i2c read failed: %w", err)
		}
		fmt.Fprintf(c.out, "0x%02x[0x%02x]: %s\n", addr, reg, hex.EncodeToString(buf))
		return nil

	case "write":
		data := make([]byte, 0, len(args)-2)
		for _, a := range args[2:] {
			b, err := parseByte(a)
			if err != nil {
				return err
			}
			data = append(data, b)
		}
		if err := c.board.I2CBus.Write(ctx, core.I2CAddress(addr), data); err != nil {
			return fmt.Errorf("i2c write failed: %w", err)
		}
		fmt.Fprintf(c.out, "wrote %d bytes to 0x%02x\n", len(data), addr)
		return nil
	}
	return fmt.Errorf("%w: i2c read|write", errUsage)
}

func (c *Console) cmdSHTC3(ctx context.Context) error {
	dev := shtc3.New(c.board.I2CBus.Bus(ctx))
	if err := dev.WakeUp(); err != nil {
		return fmt.Errorf("shtc3 wake failed: %w", err)
	}
	defer func() { _ = dev.Sleep() }()

	tmc, rhx100, err := dev.ReadTemperatureHumidity()
	if err != nil {
		return fmt.Errorf("shtc3 read failed: %w", err)
	}
	fmt.Fprintf(c.out, "temperature %.2f C, humidity %.2f %%\n", float64(tmc)/1000, float64(rhx100)/100)
	return nil
}

func (c *Console) cmdTimers() {
	at, armed := c.board.Timer.Armed()
	fmt.Fprintf(c.out, "now=%d pending=%d/%d", c.board.Timer.Now(), c.board.Timer.Pending(), c.board.Timer.Queue().Cap())
	if armed {
		fmt.Fprintf(c.out, " armed=%d\n", at)
	} else {
		fmt.Fprintln(c.out, " disarmed")
	}
}

func parseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("bad byte %q: %w", s, err)
	}
	return byte(v), nil
}
