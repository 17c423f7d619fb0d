package utils

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestSanitizeFileName(t *testing.T) {
	tests := map[string]string{
		"Chapter: 2":       "Chapter_ 2",
		"a/b\\c":           "a_b_c",
		"what?*|":          "what_",
		"  spaced name.  ": "spaced name",
		"":                 "_",
	}
	for input, want := range tests {
		if got := SanitizeFileName(input); got != want {
			t.Errorf("SanitizeFileName(%q): expected %q, got %q", input, want, got)
		}
	}
}

func TestOutputPath(t *testing.T) {
	req := DownloadRequest{URL: "https://cdn.example.com/media/clip.mp4?token=abc", OutputDir: "out"}
	if got := req.OutputPath(); got != filepath.Join("out", "clip.mp4") {
		t.Errorf("Expected out/clip.mp4, got %s", got)
	}
	req.FileName = "named.mp4"
	if got := req.OutputPath(); got != filepath.Join("out", "named.mp4") {
		t.Errorf("Expected out/named.mp4, got %s", got)
	}
	bare := DownloadRequest{URL: "https://example.com/"}
	if got := bare.OutputPath(); !strings.HasPrefix(got, "download_") {
		t.Errorf("Expected a generated name, got %s", got)
	}
}

func TestParseHeaderAndCookieArgs(t *testing.T) {
	headers := ParseHeaderArgs([]string{"Referer: https://example.com", "broken", "X-Token:abc"})
	if len(headers) != 2 || headers["Referer"] != "https://example.com" || headers["X-Token"] != "abc" {
		t.Errorf("Unexpected headers %v", headers)
	}
	cookies := ParseCookieArgs([]string{"SESSDATA=xyz", "=nope", "missing", "a = b "})
	if len(cookies) != 2 {
		t.Fatalf("Expected 2 cookies, got %d", len(cookies))
	}
	if cookies[0].Name != "SESSDATA" || cookies[0].Value != "xyz" || cookies[1].Name != "a" || cookies[1].Value != "b" {
		t.Errorf("Unexpected cookies %v", cookies)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[uint64]string{
		512:         "512 B",
		2048:        "2.00 KB",
		5 * 1 << 20: "5.00 MB",
	}
	for input, want := range tests {
		if got := FormatBytes(input); got != want {
			t.Errorf("FormatBytes(%d): expected %s, got %s", input, want, got)
		}
	}
}

func TestTempPaths(t *testing.T) {
	if got := AssemblyPath("out/clip.mp4"); got != "out/clip.mp4.assembling" {
		t.Errorf("Expected out/clip.mp4.assembling, got %s", got)
	}
	if got := MergeTempPath("out/clip.mp4"); got != "out/clip.merging.mp4" {
		t.Errorf("Expected out/clip.merging.mp4, got %s", got)
	}
}

func TestSweepStaleParts(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-48 * time.Hour)
	files := map[string]bool{
		"clip.mp4.part0":      true,
		"clip.mp4.part":       true,
		"clip.mp4.assembling": true,
		"clip.merging.mp4":    true,
		"fresh.mp4.part":      false,
		"clip.mp4":            false,
		"notes.partial":       false,
	}
	for name, stale := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		if stale || name == "clip.mp4" || name == "notes.partial" {
			os.Chtimes(path, old, old)
		}
	}

	removed, err := SweepStaleParts(dir, 24*time.Hour)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	var names []string
	for _, path := range removed {
		names = append(names, filepath.Base(path))
	}
	slices.Sort(names)
	if !slices.Equal(names, []string{"clip.merging.mp4", "clip.mp4.assembling", "clip.mp4.part", "clip.mp4.part0"}) {
		t.Errorf("Unexpected removals %v", names)
	}
	for name, stale := range files {
		if FileExists(filepath.Join(dir, name)) == stale {
			t.Errorf("Unexpected state for %s", name)
		}
	}

	if removed, err := SweepStaleParts(filepath.Join(dir, "missing"), time.Hour); err != nil || removed != nil {
		t.Errorf("Expected a missing dir to be ignored, got %v %v", removed, err)
	}
	if removed, _ := SweepStaleParts(dir, 0); removed != nil {
		t.Error("Expected a zero ttl to disable sweeping")
	}
}
