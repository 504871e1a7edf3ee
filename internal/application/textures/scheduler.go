package textures

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	domain "github.com/bryanwahyu/texture-automaton/internal/domain/textures"
)

// DefaultPollInterval bounds how late a dead process can be noticed when its
// done channel is not signalled.
const DefaultPollInterval = time.Second

// Scheduler analyzes textures, launches the external application and, when an
// interval is set, regenerates every texture on that interval for as long as
// the application keeps running.
type Scheduler struct {
	Analyzer *Analyzer
	Engine   *Engine
	Launcher domain.Launcher
	ExePath  string
	Force    bool
	// Interval <= 0 disables periodic regeneration.
	Interval     time.Duration
	PollInterval time.Duration
}

// Run drives the session to completion. It returns an error only when the
// analysis store cannot be built or persisted; a launch failure is logged and
// leaves the completed analysis in place.
func (s *Scheduler) Run(ctx context.Context, sess *Session) error {
	store, err := s.Analyzer.LoadOrBuild(ctx, s.Force)
	if err != nil {
		return err
	}
	sess.setStore(store)

	log.WithField("exe", s.ExePath).Info("scheduler: launching application")
	proc, err := s.Launcher.Launch(ctx, s.ExePath)
	if err != nil {
		log.WithError(err).WithField("exe", s.ExePath).Error("scheduler: launch failed")
		sess.setState(StateStopped)
		return nil
	}
	sess.setProcess(proc)
	sess.setState(StateRunning)
	defer sess.setState(StateStopped)
	log.WithField("pid", proc.PID()).Info("scheduler: application launched")

	if s.Interval <= 0 {
		log.Info("scheduler: no regeneration interval, exiting after launch")
		return nil
	}

	log.WithField("interval", s.Interval).Info("scheduler: periodic regeneration started")
	for {
		if ctx.Err() != nil {
			log.Info("scheduler: interrupted, shutting down")
			return nil
		}
		if !proc.Alive() {
			log.Info("scheduler: application has closed, stopping regeneration")
			return nil
		}
		pass := s.Engine.RegenerateAll(ctx, store)
		sess.recordPass(pass)

		if !s.wait(ctx, proc) {
			if ctx.Err() != nil {
				log.Info("scheduler: interrupted, shutting down")
			} else {
				log.Info("scheduler: application has closed, stopping regeneration")
			}
			return nil
		}
	}
}

// wait blocks for one interval. It returns false as soon as the process exits
// or ctx is cancelled.
func (s *Scheduler) wait(ctx context.Context, proc domain.Process) bool {
	poll := s.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	timer := time.NewTimer(s.Interval)
	defer timer.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-proc.Done():
			return false
		case <-timer.C:
			return proc.Alive()
		case <-ticker.C:
			if !proc.Alive() {
				return false
			}
		}
	}
}
