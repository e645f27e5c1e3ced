package gpio

import (
	"errors"
	"testing"
	"time"
)

func TestFakeBoardEcho(t *testing.T) {
	f := NewFakeBoard(
		EchoSample{Width: time.Millisecond, OK: true},
		EchoSample{OK: false},
	)

	// Read first sample
	w, ok, err := f.Echo(30 * time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || w != time.Millisecond {
		t.Errorf("echo 0: expected (1ms, true), got (%v, %v)", w, ok)
	}

	// Second is a timeout
	_, ok, _ = f.Echo(30 * time.Millisecond)
	if ok {
		t.Error("echo 1: expected timeout")
	}

	// Third read should repeat last sample
	_, ok, _ = f.Echo(30 * time.Millisecond)
	if ok {
		t.Error("echo 2 (repeat): expected timeout")
	}
}

func TestFakeBoardNoEchoes(t *testing.T) {
	f := NewFakeBoard()

	_, _, err := f.Echo(time.Millisecond)
	if err == nil {
		t.Error("expected error with no echoes")
	}
}

func TestEchoForCm(t *testing.T) {
	e := EchoForCm(20)
	if !e.OK {
		t.Fatal("expected ok echo")
	}
	// 20cm round trip at 0.0343 cm/us
	want := 1166 * time.Microsecond
	if e.Width < want || e.Width > want+2*time.Microsecond {
		t.Errorf("expected ~%v, got %v", want, e.Width)
	}
}

func TestFakeBoardOutputs(t *testing.T) {
	f := NewFakeBoard()

	if err := f.SetPump(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.SetAlarm(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.Pump || !f.Alarm {
		t.Errorf("expected pump and alarm on, got (%v, %v)", f.Pump, f.Alarm)
	}
	if len(f.Writes) != 2 || f.Writes[0] != (Write{Output: "pump", On: true}) {
		t.Errorf("unexpected writes: %+v", f.Writes)
	}

	f.Close()
	if f.Pump || f.Alarm || !f.Closed {
		t.Error("close should leave outputs off")
	}
}

func TestFakeBoardWriteError(t *testing.T) {
	f := NewFakeBoard()
	f.WriteError = errors.New("simulated error")

	if err := f.SetPump(true); err == nil || err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
	if f.Pump {
		t.Error("failed write must not change state")
	}
}
