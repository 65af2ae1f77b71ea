package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/medibook/internal/domain/entities"
	"github.com/zatekoja/medibook/internal/domain/providers"
)

// Invalidator is a view that can refetch itself
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// InvalidatorFunc adapts a function to Invalidator
type InvalidatorFunc func(ctx context.Context) error

// Invalidate calls f(ctx)
func (f InvalidatorFunc) Invalidate(ctx context.Context) error { return f(ctx) }

type refreshTarget struct {
	name  string
	view  Invalidator
	types map[entities.AppointmentEventType]struct{}
}

func (t refreshTarget) matches(event *entities.AppointmentEvent) bool {
	if len(t.types) == 0 {
		return true
	}
	_, ok := t.types[event.Type]
	return ok
}

const (
	refreshTimeout = 10 * time.Second
	seenEventLimit = 256
)

// RefreshService turns change events into invalidations of registered views,
// and optionally refreshes every view on a fixed interval. Refresh failures
// are logged and never stop the service.
type RefreshService struct {
	events providers.EventBus
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	targets []refreshTarget
	seen    map[string]struct{}
	wg      sync.WaitGroup
}

// NewRefreshService creates a refresh service. events may be nil for tick-only use.
func NewRefreshService(events providers.EventBus) *RefreshService {
	ctx, cancel := context.WithCancel(context.Background())
	return &RefreshService{
		events: events,
		ctx:    ctx,
		cancel: cancel,
		seen:   make(map[string]struct{}),
	}
}

// Register adds a view refreshed by events of the given types; no types means every event
func (s *RefreshService) Register(name string, view Invalidator, types ...entities.AppointmentEventType) {
	t := refreshTarget{name: name, view: view, types: make(map[entities.AppointmentEventType]struct{}, len(types))}
	for _, et := range types {
		t.types[et] = struct{}{}
	}
	s.mu.Lock()
	s.targets = append(s.targets, t)
	s.mu.Unlock()
}

// Start begins listening on channel
func (s *RefreshService) Start(channel string) error {
	if s.events == nil {
		return fmt.Errorf("refresh service has no event bus")
	}
	eventChan, err := s.events.Subscribe(s.ctx, channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	s.wg.Add(1)
	go s.processEvents(eventChan)
	log.Debug().Str("channel", channel).Msg("Refresh service started")
	return nil
}

// Stop stops event processing and periodic refreshes
func (s *RefreshService) Stop() {
	s.cancel()
	s.wg.Wait()
	log.Debug().Msg("Refresh service stopped")
}

func (s *RefreshService) processEvents(eventChan <-chan *entities.AppointmentEvent) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			s.HandleEvent(event)
		}
	}
}

// HandleEvent invalidates every view interested in event. An event already handled is ignored.
func (s *RefreshService) HandleEvent(event *entities.AppointmentEvent) {
	s.mu.Lock()
	if event.ID != "" {
		if _, dup := s.seen[event.ID]; dup {
			s.mu.Unlock()
			return
		}
		if len(s.seen) >= seenEventLimit {
			s.seen = make(map[string]struct{})
		}
		s.seen[event.ID] = struct{}{}
	}
	var targets []refreshTarget
	for _, t := range s.targets {
		if t.matches(event) {
			targets = append(targets, t)
		}
	}
	s.mu.Unlock()

	logger := log.With().
		Str("event_id", event.ID).
		Str("event_type", string(event.Type)).
		Int64("appointment_id", event.AppointmentID).
		Logger()
	logger.Debug().Int("views", len(targets)).Msg("Processing refresh event")

	for _, t := range targets {
		s.refresh(t, &logger)
	}
}

// RefreshAll invalidates every registered view and returns how many failed
func (s *RefreshService) RefreshAll() int {
	s.mu.Lock()
	targets := append([]refreshTarget(nil), s.targets...)
	s.mu.Unlock()

	failed := 0
	for _, t := range targets {
		if !s.refresh(t, &log.Logger) {
			failed++
		}
	}
	return failed
}

// StartPeriodic refreshes every view each interval until ctx ends or Stop is called
func (s *RefreshService) StartPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				if failed := s.RefreshAll(); failed > 0 {
					log.Warn().Int("failed", failed).Msg("Periodic refresh incomplete")
				}
			}
		}
	}()
	log.Debug().Dur("interval", interval).Msg("Started periodic refresh")
}

func (s *RefreshService) refresh(t refreshTarget, logger *zerolog.Logger) bool {
	ctx, cancel := context.WithTimeout(s.ctx, refreshTimeout)
	defer cancel()

	if err := t.view.Invalidate(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		logger.Warn().Err(err).Str("view", t.name).Msg("Failed to refresh view")
		return false
	}
	return true
}
