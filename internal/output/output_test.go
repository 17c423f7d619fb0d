package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestPrintProgressBarClamps(t *testing.T) {
	tests := []struct {
		current, total int64
		want           string
	}{
		{50, 100, "50.0%"},
		{200, 100, "100.0%"},
		{-5, 100, "0.0%"},
		{0, 0, "0.0%"},
	}
	for _, tt := range tests {
		if got := PrintProgressBar(tt.current, tt.total, 10); !strings.Contains(got, tt.want) {
			t.Errorf("PrintProgressBar(%d, %d): expected %s in %q", tt.current, tt.total, tt.want, got)
		}
	}
}

func TestFormatSpeed(t *testing.T) {
	if got := FormatSpeed(0, 1); got != "0 B/s" {
		t.Errorf("Expected 0 B/s, got %s", got)
	}
	if got := FormatSpeed(2048, 2); got != "1.00 KB/s" {
		t.Errorf("Expected 1.00 KB/s, got %s", got)
	}
}

func TestManagerSummary(t *testing.T) {
	var buf bytes.Buffer
	m := NewManagerTo(&buf)
	m.StartDisplay()
	ok := m.RegisterFunction("a.mp4")
	bad := m.RegisterFunction("b.mp4")
	m.RegisterFunction("c.mp4")
	m.SetMessage(ok, "Downloading a.mp4")
	m.AddProgressBarToStream(ok, 5, 10, "5 B / 10 B")
	m.BatchProgress("Downloads", 2, 3)
	m.Complete(ok, "")
	m.ReportError(bad, errors.New("connection reset"))
	m.StopDisplay()

	success, failures, total := m.Counts()
	if success != 1 || failures != 1 || total != 3 {
		t.Errorf("Expected 1/1/3, got %d/%d/%d", success, failures, total)
	}
	out := buf.String()
	for _, want := range []string{"Completed 1 of 3", "Failed 1 of 3", "connection reset", "b.mp4"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in summary output", want)
		}
	}
}

func TestPlainDisplayAndDiscard(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlainDisplay(&buf)
	id := p.RegisterFunction("a.mp4")
	p.BatchProgress("Downloads", 0, 2)
	p.ReportError(id, errors.New("boom"))
	p.BatchProgress("Downloads", 2, 2)
	p.Close()
	if !strings.Contains(buf.String(), "Failed 1 of 1") {
		t.Errorf("Expected failure count in %q", buf.String())
	}

	if Discard.RegisterFunction("x") != 0 {
		t.Error("Expected Discard to hand out id 0")
	}
}
