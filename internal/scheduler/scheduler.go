// Package scheduler owns the recurring watch timers, one per registered user.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/C0okiesl/KopiRadar/internal/radar"
)

// Sender is the interface for sending Telegram messages.
type Sender interface {
	SendMessage(chatID int64, text string)
}

// Scheduler runs one watch loop per registered user. Each loop polls the
// feed, filters and deduplicates, and delivers the digest. A slow upstream
// response for one user never delays another.
type Scheduler struct {
	svc      *radar.Service
	sender   Sender
	log      *slog.Logger
	interval time.Duration
	prune    time.Duration

	mu       sync.Mutex
	watchers map[int64]context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a Scheduler ticking each user's watch at the given interval.
func New(svc *radar.Service, sender Sender, interval time.Duration, log *slog.Logger) *Scheduler {
	return &Scheduler{
		svc:      svc,
		sender:   sender,
		log:      log,
		interval: interval,
		prune:    time.Hour,
		watchers: make(map[int64]context.CancelFunc),
	}
}

// SetPruneInterval overrides the default hourly history prune cadence.
func (s *Scheduler) SetPruneInterval(d time.Duration) {
	s.prune = d
}

// Run starts watch loops for all known users and the prune loop, then blocks
// until ctx is cancelled and all loops have drained.
func (s *Scheduler) Run(ctx context.Context) {
	for _, chatID := range s.svc.ChatIDs() {
		s.AddWatch(ctx, chatID)
	}

	s.wg.Add(1)
	go s.pruneLoop(ctx)

	<-ctx.Done()
	s.wg.Wait()
}

// AddWatch starts the recurring watch loop for a chat. Adding an existing
// watch is a no-op.
func (s *Scheduler) AddWatch(ctx context.Context, chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.watchers[chatID]; ok {
		return
	}

	watchCtx, cancel := context.WithCancel(ctx)
	s.watchers[chatID] = cancel

	s.wg.Add(1)
	go s.watch(watchCtx, chatID)

	s.log.Info("watch added", "chat_id", chatID)
}

// RemoveWatch stops the watch loop for a chat.
func (s *Scheduler) RemoveWatch(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.watchers[chatID]; ok {
		cancel()
		delete(s.watchers, chatID)
		s.log.Info("watch removed", "chat_id", chatID)
	}
}

func (s *Scheduler) watch(ctx context.Context, chatID int64) {
	defer s.wg.Done()

	// First tick fires immediately, matching the out-of-band cycle a new
	// watch performs.
	s.tick(ctx, chatID)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, chatID)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, chatID int64) {
	if ctx.Err() != nil {
		return
	}
	if !s.svc.IsRegistered(chatID) {
		if err := s.svc.EnsureUser(ctx, chatID); err != nil {
			s.log.Warn("tick skipped, user not provisioned", "chat_id", chatID, "error", err)
			return
		}
	}

	msg, err := s.svc.RunCycle(ctx, chatID)
	if err != nil {
		s.log.Error("watch tick", "chat_id", chatID, "error", err)
		return
	}
	if msg != "" {
		s.sender.SendMessage(chatID, msg)
	}
}

func (s *Scheduler) pruneLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.prune)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.svc.PruneHistory(ctx)
			if err != nil {
				s.log.Error("prune history", "error", err)
				continue
			}
			if n > 0 {
				s.log.Info("pruned history", "entries", n)
			}
		}
	}
}
