package ui

import (
	"strings"
	"testing"
)

func newTestModel(files ...string) *progressModel {
	return NewProgressModel("remap", files, make(chan Event)).(*progressModel)
}

func TestApplyEventTracksStages(t *testing.T) {
	m := newTestModel("a.snap", "b.snap")

	m.applyEvent(Event{File: "a.snap", Stage: StageRemap, Status: StatusWorking})
	if got := m.items[0].status; got != "remapping" {
		t.Fatalf("status = %q, want remapping", got)
	}
	if got := m.percent(); got != 0.25 {
		t.Fatalf("percent = %v, want 0.25", got)
	}

	m.applyEvent(Event{File: "a.snap", Stage: StageWrite, Status: StatusDone})
	m.applyEvent(Event{File: "b.snap", Stage: StageRead, Status: StatusError})
	if got := m.percent(); got != 1 {
		t.Fatalf("percent = %v, want 1", got)
	}

	m.applyEvent(Event{File: "unknown.snap", Stage: StageRead, Status: StatusWorking})
	m.applyEvent(Event{Stage: StageVerify, Status: StatusWorking})
	if m.stageLabel != "verifying" {
		t.Fatalf("stageLabel = %q, want verifying", m.stageLabel)
	}
}

func TestViewListsFiles(t *testing.T) {
	m := newTestModel("a.snap", strings.Repeat("x", 200)+".snap")
	m.applyEvent(Event{File: "a.snap", Stage: StageRead, Status: StatusWorking})
	m.done = true

	view := m.View()
	for _, want := range []string{"done: remap", "reading", "a.snap", "..."} {
		if !strings.Contains(view, want) {
			t.Fatalf("view lacks %q:\n%s", want, view)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"abcdefghij", 6, "abc..."},
		{"abcdef", 2, "ab"},
		{"abc", 0, "abc"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}
