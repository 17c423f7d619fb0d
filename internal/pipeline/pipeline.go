package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/mediafetch/internal/merger"
	"github.com/tanq16/mediafetch/internal/scheduler"
	"github.com/tanq16/mediafetch/internal/utils"
)

type Resolver interface {
	Resolve(ctx context.Context, id string) ([]utils.Episode, error)
}

type Exporter interface {
	Export(ctx context.Context, localPath string) (string, error)
}

type Options struct {
	OutputDir   string
	Segmenting  bool
	SegmentSize int64
	UseCache    bool
	KeepInputs  bool
	Exporter    Exporter
}

type EpisodeStatus string

const (
	StatusCached         EpisodeStatus = "cached"
	StatusMerged         EpisodeStatus = "merged"
	StatusDownloadFailed EpisodeStatus = "download-failed"
	StatusMergeFailed    EpisodeStatus = "merge-failed"
	StatusUnresolved     EpisodeStatus = "unresolved"
	StatusExportFailed   EpisodeStatus = "export-failed"
)

type EpisodeReport struct {
	Episode    utils.Episode
	VideoPath  string
	AudioPath  string
	OutputPath string
	Status     EpisodeStatus
	ExportURI  string
	Err        error
}

func (e EpisodeReport) OK() bool {
	return e.Status == StatusCached || e.Status == StatusMerged
}

type Report struct {
	RunID     string
	ID        string
	OutputDir string
	Episodes  []EpisodeReport
}

func (r *Report) Failed() int {
	failed := 0
	for _, ep := range r.Episodes {
		if !ep.OK() {
			failed++
		}
	}
	return failed
}

func (r *Report) Err() error {
	var errs []error
	for _, ep := range r.Episodes {
		if !ep.OK() {
			errs = append(errs, fmt.Errorf("%s (%s): %w", ep.Episode.Title, ep.Status, ep.Err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d episodes failed: %w", len(errs), len(r.Episodes), errors.Join(errs...))
}

// Pipeline downloads every part of a content ID as separate video and audio
// files and merges each pair into one output.
type Pipeline struct {
	resolver  Resolver
	scheduler *scheduler.Scheduler
	merger    *merger.Merger
	opts      Options
}

func New(resolver Resolver, sched *scheduler.Scheduler, m *merger.Merger, opts Options) *Pipeline {
	return &Pipeline{resolver: resolver, scheduler: sched, merger: m, opts: opts}
}

func DefaultOutputDir(id string) string {
	return filepath.Join("data", "downloads", utils.SanitizeFileName(id))
}

// Run returns a report with one entry per resolved part, in part order. The
// error is non-nil when resolution fails or any episode did not finish.
func (p *Pipeline) Run(ctx context.Context, id string) (*Report, error) {
	episodes, err := p.resolver.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	report := &Report{RunID: uuid.NewString(), ID: id, OutputDir: p.opts.OutputDir}
	if report.OutputDir == "" {
		report.OutputDir = DefaultOutputDir(id)
	}
	if err := os.MkdirAll(report.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("error creating output directory: %w", err)
	}
	log.Info().Str("op", "pipeline").Str("run", report.RunID).Msgf("Resolved %d parts for %s", len(episodes), id)

	report.Episodes = make([]EpisodeReport, len(episodes))
	var requests []utils.DownloadRequest
	var owners []int
	var toMerge []int
	for i, name := range episodeNames(episodes) {
		ep := &report.Episodes[i]
		ep.Episode = episodes[i]
		ep.VideoPath = filepath.Join(report.OutputDir, name+"_video.mp4")
		ep.AudioPath = filepath.Join(report.OutputDir, name+"_audio.mp4")
		ep.OutputPath = filepath.Join(report.OutputDir, name+".mp4")

		switch {
		case p.opts.UseCache && utils.FileExists(ep.OutputPath):
			ep.Status = StatusCached
			log.Info().Str("op", "pipeline").Msgf("Using cached output %s", ep.OutputPath)
		case p.opts.UseCache && utils.FileExists(ep.VideoPath) && utils.FileExists(ep.AudioPath):
			toMerge = append(toMerge, i)
		case !ep.Episode.Resolved():
			ep.Status = StatusUnresolved
			ep.Err = errors.New("missing video or audio URL")
		default:
			requests = append(requests, p.request(ep.Episode.VideoURL, ep.VideoPath), p.request(ep.Episode.AudioURL, ep.AudioPath))
			owners = append(owners, i)
		}
	}

	if len(requests) > 0 {
		outcomes := p.scheduler.DownloadAll(ctx, requests)
		for k, i := range owners {
			video, audio := outcomes[2*k], outcomes[2*k+1]
			if video.OK() && audio.OK() {
				toMerge = append(toMerge, i)
				continue
			}
			report.Episodes[i].Status = StatusDownloadFailed
			report.Episodes[i].Err = errors.Join(video.Err, audio.Err)
		}
	}

	p.merge(ctx, report, toMerge)
	p.export(ctx, report)
	return report, report.Err()
}

func (p *Pipeline) request(link, localPath string) utils.DownloadRequest {
	return utils.DownloadRequest{
		URL:         link,
		OutputDir:   filepath.Dir(localPath),
		FileName:    filepath.Base(localPath),
		Segmenting:  p.opts.Segmenting,
		SegmentSize: p.opts.SegmentSize,
	}
}

func (p *Pipeline) merge(ctx context.Context, report *Report, indices []int) {
	if len(indices) == 0 {
		return
	}
	owner := make(map[*merger.Job]int, len(indices))
	for _, i := range indices {
		ep := &report.Episodes[i]
		owner[p.merger.Add(ep.VideoPath, ep.AudioPath, ep.OutputPath)] = i
	}
	jobs, _ := p.merger.Run(ctx)
	for _, job := range jobs {
		i, ok := owner[job]
		if !ok {
			continue
		}
		ep := &report.Episodes[i]
		if job.Status != merger.StatusSucceeded {
			ep.Status = StatusMergeFailed
			ep.Err = job.Err
			continue
		}
		ep.Status = StatusMerged
		if p.opts.KeepInputs {
			continue
		}
		if err := job.RemoveInputs(); err != nil {
			log.Warn().Str("op", "pipeline").Err(err).Msgf("Could not remove inputs of %s", ep.OutputPath)
		}
	}
}

func (p *Pipeline) export(ctx context.Context, report *Report) {
	if p.opts.Exporter == nil {
		return
	}
	for i := range report.Episodes {
		ep := &report.Episodes[i]
		if !ep.OK() {
			continue
		}
		uri, err := p.opts.Exporter.Export(ctx, ep.OutputPath)
		if err != nil {
			ep.Status = StatusExportFailed
			ep.Err = err
			continue
		}
		ep.ExportURI = uri
	}
}

// episodeNames sanitizes titles into file stems, suffixing repeats so that no
// two parts share a path.
func episodeNames(episodes []utils.Episode) []string {
	names := make([]string, len(episodes))
	seen := make(map[string]int, len(episodes))
	for i, ep := range episodes {
		name := utils.SanitizeFileName(ep.Title)
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s_%d", name, n)
		}
		names[i] = name
	}
	return names
}
