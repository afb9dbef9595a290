package observ

import (
	"strings"
	"testing"
	"time"
)

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	tm.Add("decode", 2*time.Millisecond, "")
	tm.Add("remap", 3*time.Millisecond, "changed")
	idx := tm.Begin("encode")
	tm.End(idx, "")
	tm.End(42, "ignored")

	r := tm.Report()
	if len(r.Phases) != 3 {
		t.Fatalf("expected 3 phases, got %d", len(r.Phases))
	}
	if r.Phases[1].DurationMS != 3 || r.Phases[1].Note != "changed" {
		t.Errorf("unexpected remap phase: %+v", r.Phases[1])
	}
	if r.TotalMS < 5 {
		t.Errorf("total %.2f ms is below the recorded phases", r.TotalMS)
	}
	s := tm.Summary()
	if !strings.Contains(s, "remap") || !strings.Contains(s, "// changed") || !strings.Contains(s, "total") {
		t.Errorf("unexpected summary:\n%s", s)
	}
}

func TestEmptyTimer(t *testing.T) {
	if r := NewTimer().Report(); r.TotalMS != 0 || r.Phases != nil {
		t.Fatalf("empty timer report = %+v", r)
	}
}
