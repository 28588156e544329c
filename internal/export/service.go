package export

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/contentbuddy/contentbuddy/internal/config"
	"github.com/contentbuddy/contentbuddy/internal/protocol"
)

// Emitter publishes pipeline events.
type Emitter interface {
	Emit(subject string, v any)
}

// Job is the locally tracked state of an export.
type Job struct {
	ID             string    `json:"jobId"`
	SessionID      string    `json:"-"`
	Status         string    `json:"status"`
	FolderPath     string    `json:"folderPath,omitempty"`
	OutputFilePath string    `json:"outputFilePath,omitempty"`
	Error          string    `json:"error,omitempty"`
	Message        string    `json:"message,omitempty"`
	UpdatedAt      time.Time `json:"-"`
}

func (j Job) terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Service submits export folders and polls AutoVideoMaker until each job
// completes or fails, publishing every status change.
type Service struct {
	cfg    config.ExportConfig
	avm    *AVMClient
	events Emitter
	logger *slog.Logger
	clock  func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewService(parent context.Context, cfg config.ExportConfig, avm *AVMClient, events Emitter, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		cfg:    cfg,
		avm:    avm,
		events: events,
		logger: log.With(slog.String("component", "export-service")),
		clock:  time.Now,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]*Job),
	}
}

// TempDir is where export folders are written.
func (s *Service) TempDir() string {
	if s.cfg.TempDir == "" {
		return os.TempDir()
	}
	return s.cfg.TempDir
}

// Submit writes the export folder, starts the remote job and begins polling it.
func (s *Service) Submit(ctx context.Context, req Request) (Job, error) {
	folder, err := WriteFolder(s.TempDir(), req)
	if err != nil {
		return Job{}, err
	}
	jobID, status, err := s.avm.Submit(ctx, folder, req.Script, req.SkipSubtitle)
	if err != nil {
		_ = os.RemoveAll(folder.Path)
		return Job{}, err
	}
	job := &Job{
		ID:         jobID,
		SessionID:  req.SessionID,
		Status:     status,
		FolderPath: folder.Path,
		UpdatedAt:  s.clock(),
	}
	s.mu.Lock()
	s.pruneLocked(s.clock())
	s.jobs[jobID] = job
	snapshot := *job
	s.mu.Unlock()

	s.logger.Info("export job submitted",
		slog.String("job_id", jobID),
		slog.String("folder", folder.Path),
		slog.Int("segments", len(req.Segments)))
	s.publish(snapshot)

	if !snapshot.terminal() {
		s.wg.Add(1)
		go s.poll(jobID)
	}
	return snapshot, nil
}

// Status returns the tracked job, asking AutoVideoMaker directly for jobs
// this process did not submit.
func (s *Service) Status(ctx context.Context, jobID string) (Job, error) {
	s.mu.Lock()
	s.pruneLocked(s.clock())
	job, ok := s.jobs[jobID]
	var snapshot Job
	if ok {
		snapshot = *job
	}
	s.mu.Unlock()
	if ok {
		return snapshot, nil
	}
	remote, err := s.avm.Status(ctx, jobID)
	if err != nil {
		return Job{}, err
	}
	return Job{
		ID:             jobID,
		Status:         remote.Status,
		OutputFilePath: remote.OutputFilePath,
		Error:          remote.Error,
		Message:        remote.Message,
	}, nil
}

// ActiveJobs counts tracked jobs that have not reached a terminal status.
func (s *Service) ActiveJobs() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, j := range s.jobs {
		if !j.terminal() {
			n++
		}
	}
	return n
}

// Jobs reports how many jobs are tracked, finished ones included.
func (s *Service) Jobs() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

func (s *Service) retention() time.Duration {
	if s.cfg.JobRetentionMS <= 0 {
		return time.Hour
	}
	return time.Duration(s.cfg.JobRetentionMS) * time.Millisecond
}

// pruneLocked drops finished jobs whose last update is older than the
// retention window. Their status stays available from AutoVideoMaker.
func (s *Service) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.retention())
	for id, j := range s.jobs {
		if j.terminal() && j.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
		}
	}
}

func (s *Service) pollInterval() time.Duration {
	if s.cfg.PollIntervalMS <= 0 {
		return 3 * time.Second
	}
	return time.Duration(s.cfg.PollIntervalMS) * time.Millisecond
}

func (s *Service) poll(jobID string) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.pollInterval())
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
		remote, err := s.avm.Status(s.ctx, jobID)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			if errors.Is(err, ErrJobNotFound) {
				remote = RemoteStatus{Status: StatusFailed, Error: err.Error()}
			} else {
				s.logger.Warn("export job poll failed", slog.String("job_id", jobID), slogError(err))
				continue
			}
		}
		job, changed := s.apply(jobID, remote)
		if changed {
			s.publish(job)
		}
		if job.terminal() {
			s.logger.Info("export job finished",
				slog.String("job_id", jobID),
				slog.String("status", job.Status),
				slog.String("output", job.OutputFilePath))
			return
		}
	}
}

func (s *Service) apply(jobID string, remote RemoteStatus) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return Job{ID: jobID, Status: StatusFailed}, false
	}
	changed := job.Status != remote.Status ||
		job.OutputFilePath != remote.OutputFilePath ||
		job.Error != remote.Error ||
		job.Message != remote.Message
	if remote.Status != "" {
		job.Status = remote.Status
	}
	job.OutputFilePath = remote.OutputFilePath
	job.Error = remote.Error
	job.Message = remote.Message
	job.UpdatedAt = s.clock()
	return *job, changed
}

func (s *Service) publish(job Job) {
	if s.events == nil {
		return
	}
	s.events.Emit(protocol.SubjectExportStatus, protocol.ExportStatus{
		SessionID:      job.SessionID,
		JobID:          job.ID,
		Status:         job.Status,
		FolderPath:     job.FolderPath,
		OutputFilePath: job.OutputFilePath,
		Error:          job.Error,
		Message:        job.Message,
		Timestamp:      job.UpdatedAt.UTC(),
	})
}

// Healthy reports whether the service is accepting work.
func (s *Service) Healthy() bool { return s.ctx.Err() == nil }

// Close stops polling and waits for pollers to exit.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}

