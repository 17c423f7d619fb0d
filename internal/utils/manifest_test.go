package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.yaml")
	content := `downloads:
  - link: https://example.com/a.mp4
  - link: https://example.com/b.mp4
    op: media
    name: second.mp4
    segments: false
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	entries, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}

	defaults := DownloadRequest{OutputDir: "out", Segmenting: true, SegmentSize: 100}
	first := entries[0].Request(defaults)
	if first.URL != "https://example.com/a.mp4" || first.OutputDir != "out" || !first.Segmenting {
		t.Errorf("Unexpected first request %+v", first)
	}
	second := entries[1].Request(defaults)
	if second.OutputDir != "media" || second.FileName != "second.mp4" || second.Segmenting {
		t.Errorf("Unexpected second request %+v", second)
	}
	if second.SegmentSize != 100 {
		t.Errorf("Expected segment size to carry over, got %d", second.SegmentSize)
	}
}

func TestReadManifestMissingLink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.yaml")
	if err := os.WriteFile(path, []byte("downloads:\n  - op: media\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadManifest(path); err == nil {
		t.Error("Expected an error for an entry without a link")
	}
}
