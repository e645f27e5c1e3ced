package serialio

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/water-filter/internal/engine"
	"github.com/sweeney/water-filter/internal/logic"
)

// fakePort feeds lines through a pipe and records writes.
type fakePort struct {
	r  *io.PipeReader
	w  *io.PipeWriter
	mu sync.Mutex
	tx bytes.Buffer
}

func newFakePort() *fakePort {
	r, w := io.Pipe()
	return &fakePort{r: r, w: w}
}

func (p *fakePort) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tx.Write(b)
}

func (p *fakePort) Close() error {
	p.w.Close()
	return p.r.Close()
}

func (p *fakePort) written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tx.String()
}

func (p *fakePort) send(t *testing.T, line string) {
	t.Helper()
	_, err := io.WriteString(p.w, line+"\n")
	require.NoError(t, err)
}

func recvCommand(t *testing.T, c *Console) logic.Command {
	t.Helper()
	select {
	case cmd := <-c.Commands():
		return cmd
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for command")
	}
	return ""
}

func TestConsoleParsesCommands(t *testing.T) {
	port := newFakePort()
	c := NewConsole(port)
	defer c.Close()

	port.send(t, "start")
	assert.Equal(t, logic.CommandStart, recvCommand(t, c))

	port.send(t, "1")
	assert.Equal(t, logic.CommandStart, recvCommand(t, c))

	port.send(t, "  STOP ")
	assert.Equal(t, logic.CommandStop, recvCommand(t, c))

	port.send(t, "silence")
	assert.Equal(t, logic.CommandSilenceAlarm, recvCommand(t, c))

	port.send(t, "reset")
	assert.Equal(t, logic.CommandResetUseCount, recvCommand(t, c))
}

func TestConsoleRejectsUnknownLine(t *testing.T) {
	port := newFakePort()
	c := NewConsole(port)
	defer c.Close()

	port.send(t, "")
	port.send(t, "flush")
	port.send(t, "stop")

	// The unknown line is answered before the following command is queued.
	assert.Equal(t, logic.CommandStop, recvCommand(t, c))
	assert.Contains(t, port.written(), `ERROR: unknown command "flush"`)
}

func TestConsoleReply(t *testing.T) {
	port := newFakePort()
	c := NewConsole(port)
	defer c.Close()

	require.NoError(t, c.Reply(logic.CommandResult{Command: logic.CommandStart, Accepted: true}))
	require.NoError(t, c.Reply(logic.CommandResult{Command: logic.CommandStop, Reason: "already stopped"}))

	lines := strings.Split(strings.TrimSpace(port.written()), "\n")
	assert.Equal(t, []string{"OK: START_PUMP", "REJECT: STOP_PUMP: already stopped"}, lines)
}

func TestConsoleCloseEndsCommands(t *testing.T) {
	port := newFakePort()
	c := NewConsole(port)
	require.NoError(t, c.Close())

	_, ok := <-c.Commands()
	assert.False(t, ok, "commands channel should be closed")
}

func TestFormatData(t *testing.T) {
	s := engine.TelemetrySnapshot{
		DistanceCm:  7,
		Level:       logic.LevelNormal,
		TempOutputC: 27.34,
		TdsInput:    logic.TdsChannelState{TdsPPM: 320},
		TdsOutput:   logic.TdsChannelState{TdsPPM: 40, ECMicroS: 62.5},
		Health:      logic.FilterHealth{UseCount: 7, UseLimit: 50},
		Control:     logic.ControlState{PumpOn: true},
	}

	assert.Equal(t,
		"DATA: Distance:7 | TDS:40 | EC:62.5 | Temp:27.3 | Pump:1 | Alarm:0 | Level:NORMAL | TDS_IN:320 | Use:7/50",
		FormatData(s))
}

func TestConsoleWriteData(t *testing.T) {
	port := newFakePort()
	c := NewConsole(port)
	defer c.Close()

	require.NoError(t, c.WriteData(engine.TelemetrySnapshot{Level: logic.LevelFull, Control: logic.ControlState{AlarmOn: true}}))
	assert.True(t, strings.HasPrefix(port.written(), "DATA: Distance:0 | TDS:0"))
	assert.Contains(t, port.written(), "Alarm:1 | Level:FULL")
}
