package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/ochronus/goustream/internal/upload"
)

// VideoExtensions are the file extensions JobsFromDir picks up.
var VideoExtensions = []string{".mp4", ".mov", ".m4v", ".mkv", ".avi", ".flv", ".webm", ".wmv", ".mpg", ".mpeg"}

// Job is one file to upload to a channel.
type Job struct {
	ID        uuid.UUID
	ChannelID string
	Path      string
	Options   upload.Options
}

// NewJob creates a job for the file at path.
func NewJob(channelID, path string, opts upload.Options) Job {
	return Job{
		ID:        uuid.New(),
		ChannelID: channelID,
		Path:      path,
		Options:   opts,
	}
}

// String returns a short form used in log lines.
func (j Job) String() string {
	return fmt.Sprintf("[%s: %s]", j.ID.String()[:8], filepath.Base(j.Path))
}

// Outcome is what happened to a Job.
type Outcome struct {
	Job    Job
	Result *upload.Result
	Err    error
}

// Succeeded reports whether the job's upload completed.
func (o Outcome) Succeeded() bool {
	return o.Err == nil && o.Result != nil
}

// IsVideoFile reports whether name has one of VideoExtensions.
func IsVideoFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, v := range VideoExtensions {
		if ext == v {
			return true
		}
	}
	return false
}

// JobsFromDir returns one job per video file directly inside dir, sorted by
// name. Subdirectories are not descended into. A job without a title gets
// the file name minus its extension.
func JobsFromDir(dir, channelID string, opts upload.Options) ([]Job, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var jobs []Job
	for _, entry := range entries {
		if entry.IsDir() || !IsVideoFile(entry.Name()) {
			continue
		}
		jobOpts := opts
		if jobOpts.Title == "" {
			jobOpts.Title = strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		}
		jobs = append(jobs, NewJob(channelID, filepath.Join(dir, entry.Name()), jobOpts))
	}

	sort.Slice(jobs, func(i, k int) bool { return jobs[i].Path < jobs[k].Path })
	return jobs, nil
}
