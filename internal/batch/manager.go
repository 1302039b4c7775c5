// Package batch uploads many files side by side, each one an independent
// three-phase upload.
package batch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ochronus/goustream/internal/upload"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Uploader runs one complete upload.
type Uploader interface {
	Upload(ctx context.Context, channelID string, src upload.Source, opts upload.Options) (*upload.Result, error)
}

// Manager bounds how many uploads run at once.
type Manager struct {
	uploader Uploader
	workers  int
	logger   logrus.FieldLogger
}

// NewManager creates a manager running at most workers uploads at a time.
// A nil logger discards output.
func NewManager(uploader Uploader, workers int, logger logrus.FieldLogger) *Manager {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Manager{
		uploader: uploader,
		workers:  workers,
		logger:   logger,
	}
}

// Run uploads every job and returns the outcomes in job order. A failed job
// does not stop the others; canceling ctx fails the jobs not yet finished.
func (m *Manager) Run(ctx context.Context, jobs []Job) []Outcome {
	outcomes := make([]Outcome, len(jobs))

	var g errgroup.Group
	g.SetLimit(m.workers)

	for i, job := range jobs {
		g.Go(func() error {
			outcomes[i] = m.runJob(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (m *Manager) runJob(ctx context.Context, job Job) Outcome {
	outcome := Outcome{Job: job}

	if err := ctx.Err(); err != nil {
		outcome.Err = err
		return outcome
	}

	f, err := os.Open(job.Path)
	if err != nil {
		outcome.Err = fmt.Errorf("opening %s: %w", job.Path, err)
		m.logger.Errorf("%s: %v", job, outcome.Err)
		return outcome
	}
	defer f.Close()

	m.logger.Infof("%s: upload started", job)
	src := upload.Source{Name: filepath.Base(job.Path), Reader: f}
	result, err := m.uploader.Upload(ctx, job.ChannelID, src, job.Options)
	if err != nil {
		outcome.Err = err
		m.logger.Errorf("%s: upload failed: %v", job, err)
		return outcome
	}

	outcome.Result = result
	m.logger.Infof("%s: upload done as file %s", job, result.FileID)
	return outcome
}

// Summarize counts succeeded and failed outcomes.
func Summarize(outcomes []Outcome) (succeeded, failed int) {
	for _, o := range outcomes {
		if o.Succeeded() {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}
