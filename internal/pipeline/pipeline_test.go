package pipeline

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	mediahttp "github.com/tanq16/mediafetch/internal/downloaders/http"
	"github.com/tanq16/mediafetch/internal/merger"
	"github.com/tanq16/mediafetch/internal/output"
	"github.com/tanq16/mediafetch/internal/scheduler"
	"github.com/tanq16/mediafetch/internal/utils"
)

type staticResolver struct {
	episodes []utils.Episode
	err      error
}

func (s staticResolver) Resolve(context.Context, string) ([]utils.Episode, error) {
	return s.episodes, s.err
}

type recordingExporter struct {
	exported []string
	fail     string
}

func (r *recordingExporter) Export(_ context.Context, localPath string) (string, error) {
	if strings.Contains(localPath, r.fail) && r.fail != "" {
		return "", errors.New("upload denied")
	}
	r.exported = append(r.exported, localPath)
	return "s3://bucket/" + filepath.Base(localPath), nil
}

func mediaServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/gone") {
			http.NotFound(w, r)
			return
		}
		payload := bytes.Repeat([]byte(r.URL.Path), 500)
		http.ServeContent(w, r, "media", time.Time{}, bytes.NewReader(payload))
	}))
}

func fakeEncoder(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake encoder is a shell script")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

const mergingEncoder = `for last; do :; done; printf merged > "$last"`

func newPipeline(server *httptest.Server, encoder string, resolver Resolver, opts Options) *Pipeline {
	d := mediahttp.NewDownloader(server.Client(), mediahttp.Config{Connections: 2, Retries: 1, RetryDelay: time.Millisecond, UseCache: opts.UseCache})
	return New(resolver, scheduler.New(d, 2, output.Discard), merger.New(encoder, 2), opts)
}

func episode(server *httptest.Server, title, stem string) utils.Episode {
	return utils.Episode{Title: title, VideoURL: server.URL + "/" + stem + "/v.m4s", AudioURL: server.URL + "/" + stem + "/a.m4s"}
}

func TestRunDownloadsAndMerges(t *testing.T) {
	server := mediaServer()
	defer server.Close()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Done.mp4"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}
	resolver := staticResolver{episodes: []utils.Episode{
		episode(server, "Part: One", "one"),
		{Title: "Lost"},
		episode(server, "Done", "done"),
		episode(server, "Broken", "gone"),
		episode(server, "Part: One", "again"),
	}}
	exporter := &recordingExporter{}
	p := newPipeline(server, fakeEncoder(t, mergingEncoder), resolver, Options{
		OutputDir: dir, Segmenting: true, SegmentSize: 1000, UseCache: true, Exporter: exporter,
	})

	report, err := p.Run(context.Background(), "BV1test")
	if err == nil {
		t.Fatal("Expected failed episodes to surface an error")
	}
	want := []EpisodeStatus{StatusMerged, StatusUnresolved, StatusCached, StatusDownloadFailed, StatusMerged}
	for i, ep := range report.Episodes {
		if ep.Status != want[i] {
			t.Errorf("Expected episode %d to be %s, got %s (%v)", i, want[i], ep.Status, ep.Err)
		}
	}
	if report.Failed() != 2 {
		t.Errorf("Expected 2 failed episodes, got %d", report.Failed())
	}

	first := report.Episodes[0]
	if first.OutputPath != filepath.Join(dir, "Part_ One.mp4") {
		t.Errorf("Unexpected output path %s", first.OutputPath)
	}
	if report.Episodes[4].OutputPath != filepath.Join(dir, "Part_ One_2.mp4") {
		t.Errorf("Expected a suffixed path for a repeated title, got %s", report.Episodes[4].OutputPath)
	}
	if got, _ := os.ReadFile(first.OutputPath); string(got) != "merged" {
		t.Errorf("Expected merged output, got %q", got)
	}
	for _, p := range []string{first.VideoPath, first.AudioPath} {
		if utils.FileExists(p) {
			t.Errorf("Expected input %s to be removed after merge", p)
		}
	}
	if got, _ := os.ReadFile(report.Episodes[2].OutputPath); string(got) != "old" {
		t.Error("Expected cached output to be left alone")
	}
	if len(exporter.exported) != 3 || report.Episodes[0].ExportURI == "" {
		t.Errorf("Expected merged and cached outputs to be exported, got %v", exporter.exported)
	}
}

func TestRunMergeFailureKeepsInputs(t *testing.T) {
	server := mediaServer()
	defer server.Close()
	dir := t.TempDir()
	resolver := staticResolver{episodes: []utils.Episode{episode(server, "Clip", "clip")}}
	p := newPipeline(server, fakeEncoder(t, "sleep 0.2\nexit 3"), resolver, Options{OutputDir: dir})

	report, err := p.Run(context.Background(), "BV1test")
	if err == nil {
		t.Fatal("Expected merge failure to surface")
	}
	ep := report.Episodes[0]
	if ep.Status != StatusMergeFailed {
		t.Fatalf("Expected merge-failed, got %s", ep.Status)
	}
	var encErr *merger.EncodeError
	if !errors.As(ep.Err, &encErr) || encErr.ExitCode == nil || *encErr.ExitCode != 3 {
		t.Errorf("Expected encoder exit status 3, got %v", ep.Err)
	}
	for _, p := range []string{ep.VideoPath, ep.AudioPath} {
		if !utils.FileExists(p) {
			t.Errorf("Expected input %s to remain", p)
		}
	}
}

func TestRunKeepInputsAndExportFailure(t *testing.T) {
	server := mediaServer()
	defer server.Close()
	dir := t.TempDir()
	resolver := staticResolver{episodes: []utils.Episode{episode(server, "Clip", "clip")}}
	p := newPipeline(server, fakeEncoder(t, mergingEncoder), resolver, Options{
		OutputDir: dir, KeepInputs: true, Exporter: &recordingExporter{fail: "Clip"},
	})

	report, _ := p.Run(context.Background(), "BV1test")
	ep := report.Episodes[0]
	if ep.Status != StatusExportFailed {
		t.Errorf("Expected export-failed, got %s", ep.Status)
	}
	if !utils.FileExists(ep.OutputPath) || !utils.FileExists(ep.VideoPath) || !utils.FileExists(ep.AudioPath) {
		t.Error("Expected output and inputs to be kept")
	}
}

func TestRunResolveError(t *testing.T) {
	server := mediaServer()
	defer server.Close()
	p := newPipeline(server, "ffmpeg", staticResolver{err: errors.New("no such id")}, Options{OutputDir: t.TempDir()})
	report, err := p.Run(context.Background(), "BVnope")
	if err == nil || report != nil {
		t.Errorf("Expected resolve error and no report, got %v", err)
	}
}

func TestDefaultOutputDir(t *testing.T) {
	if got := DefaultOutputDir("BV1xx"); got != filepath.Join("data", "downloads", "BV1xx") {
		t.Errorf("Unexpected default dir %s", got)
	}
}
