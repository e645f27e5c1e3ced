package logic

import "testing"

func TestEfficiency(t *testing.T) {
	tests := []struct {
		name          string
		in, out       int
		inWet, outWet bool
		want          float64
	}{
		{"nominal", 100, 40, true, true, 60.0},
		{"below floor", 5, 0, true, true, 0},
		{"at floor", 10, 0, true, true, 0},
		{"input dry", 100, 40, false, true, 0},
		{"output dry", 100, 40, true, false, 0},
		{"output dirtier clamps to zero", 100, 150, true, true, 0},
		{"perfect", 300, 0, true, true, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Efficiency(tt.in, tt.out, tt.inWet, tt.outWet)
			if got != tt.want {
				t.Errorf("Efficiency(%d, %d) = %v, want %v", tt.in, tt.out, got, tt.want)
			}
		})
	}
}

func TestHealthTracker(t *testing.T) {
	h := NewHealthTracker(3, 1)

	fh := h.Update(100, 40, true, true)
	if fh.EfficiencyPct != 60 || fh.UseCount != 1 || fh.UseLimit != 3 {
		t.Errorf("unexpected health: %+v", fh)
	}

	h.RecordUse()
	if h.LimitReached() {
		t.Error("2/3 should not be at limit")
	}
	h.RecordUse()
	if !h.LimitReached() {
		t.Error("3/3 should be at limit")
	}

	h.Reset()
	if h.Health().UseCount != 0 || h.LimitReached() {
		t.Errorf("reset should zero count, got %+v", h.Health())
	}
}

func TestHealthTrackerNegativeRestore(t *testing.T) {
	h := NewHealthTracker(3, -4)
	if h.Health().UseCount != 0 {
		t.Errorf("expected 0, got %d", h.Health().UseCount)
	}
}
