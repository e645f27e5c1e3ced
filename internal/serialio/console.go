// Package serialio runs the local serial console: one command per line in,
// acknowledgements and periodic DATA lines out.
package serialio

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"go.bug.st/serial"

	"github.com/sweeney/water-filter/internal/engine"
	"github.com/sweeney/water-filter/internal/logic"
)

const (
	// DefaultBaudRate matches the desktop monitor.
	DefaultBaudRate = 115200

	commandBacklog = 8
)

// Console reads commands from and writes telemetry to a line-oriented port.
type Console struct {
	port     io.ReadWriteCloser
	mu       sync.Mutex
	commands chan logic.Command
	done     chan struct{}
}

// Open opens a serial device and starts the console on it.
func Open(name string, baud int) (*Console, error) {
	if baud == 0 {
		baud = DefaultBaudRate
	}
	port, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	return NewConsole(port), nil
}

// NewConsole starts reading lines from port.
func NewConsole(port io.ReadWriteCloser) *Console {
	c := &Console{
		port:     port,
		commands: make(chan logic.Command, commandBacklog),
		done:     make(chan struct{}),
	}
	go c.readLines()
	return c
}

// Commands delivers parsed commands. The channel is closed when the port is.
func (c *Console) Commands() <-chan logic.Command {
	return c.commands
}

// Reply acknowledges a command outcome.
func (c *Console) Reply(r logic.CommandResult) error {
	if r.Accepted {
		return c.writeLine(fmt.Sprintf("OK: %s", r.Command))
	}
	return c.writeLine(fmt.Sprintf("REJECT: %s: %s", r.Command, r.Reason))
}

// WriteData sends one telemetry line.
func (c *Console) WriteData(s engine.TelemetrySnapshot) error {
	return c.writeLine(FormatData(s))
}

// Close closes the port and waits for the reader to stop.
func (c *Console) Close() error {
	err := c.port.Close()
	<-c.done
	return err
}

func (c *Console) writeLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := io.WriteString(c.port, line+"\n"); err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	return nil
}

func (c *Console) readLines() {
	defer close(c.done)
	defer close(c.commands)

	scanner := bufio.NewScanner(c.port)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		cmd, err := logic.ParseCommand(line)
		if err != nil {
			log.Printf("serial: %v", err)
			if werr := c.writeLine("ERROR: " + err.Error()); werr != nil {
				log.Printf("serial: %v", werr)
			}
			continue
		}

		select {
		case c.commands <- cmd:
		default:
			log.Printf("serial: command backlog full, dropping %s", cmd)
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		log.Printf("serial: read: %v", err)
	}
}

// FormatData renders the DATA line read by the desktop monitor. TDS, EC
// and temperature are the treated-water channel.
func FormatData(s engine.TelemetrySnapshot) string {
	return fmt.Sprintf("DATA: Distance:%d | TDS:%d | EC:%.1f | Temp:%.1f | Pump:%d | Alarm:%d | Level:%s | TDS_IN:%d | Use:%d/%d",
		s.DistanceCm,
		s.TdsOutput.TdsPPM,
		s.TdsOutput.ECMicroS,
		s.TempOutputC,
		bit(s.Control.PumpOn),
		bit(s.Control.AlarmOn),
		s.Level,
		s.TdsInput.TdsPPM,
		s.Health.UseCount,
		s.Health.UseLimit,
	)
}

func bit(b bool) int {
	if b {
		return 1
	}
	return 0
}
