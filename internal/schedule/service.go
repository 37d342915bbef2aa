// Package schedule runs named background jobs on cron patterns.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled unit of work. The context is cancelled when the service stops.
type Job func(ctx context.Context)

// Service owns a cron runner and the named entries registered on it.
type Service struct {
	cron   *cron.Cron
	parser cron.Parser
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	jobs map[string]entry
}

type entry struct {
	id      cron.EntryID
	pattern string
	job     Job
}

// NewService creates and starts a scheduler. Patterns accept an optional seconds
// field and descriptors such as "@every 5s" or "@hourly".
func NewService(log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		cron:   cron.New(cron.WithParser(parser)),
		parser: parser,
		logger: log.With(slog.String("service", "schedule")),
		ctx:    ctx,
		cancel: cancel,
		jobs:   map[string]entry{},
	}
	s.cron.Start()
	return s
}

// Validate reports whether pattern parses.
func (s *Service) Validate(pattern string) error {
	if _, err := s.parser.Parse(strings.TrimSpace(pattern)); err != nil {
		return fmt.Errorf("invalid cron pattern %q: %w", pattern, err)
	}
	return nil
}

// Add registers job under name, replacing any job already using that name.
func (s *Service) Add(name, pattern string, job Job) error {
	name = strings.TrimSpace(name)
	pattern = strings.TrimSpace(pattern)
	if name == "" || pattern == "" {
		return fmt.Errorf("name and pattern are required")
	}
	if job == nil {
		return fmt.Errorf("job %s is nil", name)
	}
	if err := s.Validate(pattern); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.jobs[name]; ok {
		s.cron.Remove(existing.id)
		delete(s.jobs, name)
	}
	id, err := s.cron.AddFunc(pattern, func() { s.run(name, job) })
	if err != nil {
		return err
	}
	s.jobs[name] = entry{id: id, pattern: pattern, job: job}
	s.logger.Debug("job scheduled", slog.String("job", name), slog.String("pattern", pattern))
	return nil
}

// Remove unregisters the named job. Unknown names are ignored.
func (s *Service) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.jobs[name]; ok {
		s.cron.Remove(existing.id)
		delete(s.jobs, name)
	}
}

// Trigger runs the named job immediately on the caller's goroutine.
func (s *Service) Trigger(name string) error {
	s.mu.Lock()
	existing, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not found", name)
	}
	s.run(name, existing.job)
	return nil
}

// Names lists registered job names in sorted order.
func (s *Service) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stop halts the scheduler and waits for running jobs or ctx expiry.
func (s *Service) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) run(name string, job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", slog.String("job", name), slog.Any("panic", r))
		}
	}()
	job(s.ctx)
}
