package merger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/mediafetch/internal/utils"
	"golang.org/x/sync/errgroup"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Job combines one video and one audio file into OutputPath. Its fields are
// written by the worker that runs it and are stable once Run returns.
type Job struct {
	ID         string
	VideoPath  string
	AudioPath  string
	OutputPath string
	Status     Status
	ExitCode   *int
	Output     string
	Err        error
	Duration   time.Duration
}

// RemoveInputs deletes the job's source files. It refuses unless the encoder
// has exited successfully.
func (j *Job) RemoveInputs() error {
	if j.Status != StatusSucceeded {
		return fmt.Errorf("refusing to remove inputs of %s job %s", j.Status, j.ID)
	}
	var errs []error
	for _, path := range []string{j.VideoPath, j.AudioPath} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Merger queues merge jobs and runs them on a bounded pool of encoder
// processes.
type Merger struct {
	ffmpegPath string
	workers    int
	mu         sync.Mutex
	queue      []*Job
}

// New returns a merger running at most workers encoders at once; workers <= 0
// leaves the pool unbounded.
func New(ffmpegPath string, workers int) *Merger {
	return &Merger{ffmpegPath: ffmpegPath, workers: workers}
}

func (m *Merger) Add(video, audio, output string) *Job {
	job := &Job{
		ID:         uuid.NewString(),
		VideoPath:  video,
		AudioPath:  audio,
		OutputPath: output,
		Status:     StatusQueued,
	}
	m.mu.Lock()
	m.queue = append(m.queue, job)
	m.mu.Unlock()
	return job
}

// AddAll queues the triples formed by equal positions of the three lists.
// Mismatched lengths queue nothing.
func (m *Merger) AddAll(videos, audios, outputs []string) ([]*Job, error) {
	if len(videos) != len(audios) || len(videos) != len(outputs) {
		return nil, &ValidationError{Videos: len(videos), Audios: len(audios), Outputs: len(outputs)}
	}
	jobs := make([]*Job, 0, len(videos))
	for i := range videos {
		jobs = append(jobs, m.Add(videos[i], audios[i], outputs[i]))
	}
	return jobs, nil
}

func (m *Merger) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Run executes every queued job and returns them in queue order once each
// encoder process has exited. The error joins every job failure. After ctx
// is done no new process is started; running ones are waited for.
func (m *Merger) Run(ctx context.Context) ([]*Job, error) {
	m.mu.Lock()
	jobs := m.queue
	m.queue = nil
	m.mu.Unlock()

	var g errgroup.Group
	if m.workers > 0 {
		g.SetLimit(m.workers)
	}
	for _, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				job.Status = StatusFailed
				job.Err = err
				return nil
			}
			m.runJob(job)
			return nil
		})
	}
	g.Wait()

	var errs []error
	for _, job := range jobs {
		if job.Err != nil {
			errs = append(errs, job.Err)
		}
	}
	return jobs, errors.Join(errs...)
}

func (m *Merger) runJob(job *Job) {
	start := time.Now()
	job.Status = StatusRunning
	defer func() { job.Duration = time.Since(start) }()
	fail := func(exitCode *int, err error) {
		job.Status = StatusFailed
		job.ExitCode = exitCode
		job.Err = &EncodeError{JobID: job.ID, Output: job.OutputPath, ExitCode: exitCode, Stderr: job.Output, Err: err}
		log.Error().Str("op", "merger").Err(job.Err).Msgf("Merge job %s failed", job.ID)
	}

	if dir := filepath.Dir(job.OutputPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			fail(nil, fmt.Errorf("error creating output directory: %w", err))
			return
		}
	}

	// output is renamed into place only after a clean exit
	tempPath := utils.MergeTempPath(job.OutputPath)
	var diag bytes.Buffer
	cmd := exec.Command(m.ffmpegPath, BuildArgs(job.VideoPath, job.AudioPath, tempPath)...)
	cmd.Stdout = &diag
	cmd.Stderr = &diag
	log.Debug().Str("op", "merger").Msgf("Executing ffmpeg command: %s", cmd.String())

	// Run blocks until the process exits
	err := cmd.Run()
	job.Output = diag.String()
	if err != nil {
		os.Remove(tempPath)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.ExitCode()
			fail(&code, err)
			return
		}
		fail(nil, fmt.Errorf("error starting ffmpeg: %w", err))
		return
	}
	code := 0
	if _, err := os.Stat(tempPath); err != nil {
		fail(&code, fmt.Errorf("encoder exited cleanly but produced no output: %w", err))
		return
	}
	if err := os.Rename(tempPath, job.OutputPath); err != nil {
		os.Remove(tempPath)
		fail(&code, fmt.Errorf("error finalizing merged output: %w", err))
		return
	}
	job.ExitCode = &code
	job.Status = StatusSucceeded
	log.Info().Str("op", "merger").Msgf("Merged %s", job.OutputPath)
}
