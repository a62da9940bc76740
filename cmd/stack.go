package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"dollhouse/pkg/activity"
	"dollhouse/pkg/bot"
	"dollhouse/pkg/bubble"
	"dollhouse/pkg/chaos"
	"dollhouse/pkg/config"
	"dollhouse/pkg/feed"
	"dollhouse/pkg/presence"
	"dollhouse/pkg/schedule"
	"dollhouse/pkg/store/sqlite"
)

// roomStack is everything a viewer process runs: the store and its change
// feed, one wall-clock scheduler, presence and an optional chaos event.
type roomStack struct {
	log      *slog.Logger
	store    *sqlite.Store
	bus      *feed.Bus
	sched    *schedule.Scheduler
	tracker  *activity.Tracker
	bubbles  *bubble.Manager
	event    *chaos.Event
	presence *presence.Compositor

	pollInterval time.Duration
	wg           sync.WaitGroup
	cancel       context.CancelFunc
}

func openRoomStack(cfg *config.Config, log *slog.Logger, withEvent bool) (*roomStack, error) {
	st, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	sched := schedule.New(schedule.WithLogger(log))
	tracker := activity.NewTracker(
		activity.WithClock(sched.Now),
		activity.WithInactivityThreshold(cfg.Room.InactivityThreshold()),
	)
	bubbles := bubble.NewManager(
		bubble.WithClock(sched.Now),
		bubble.WithDisplayDuration(cfg.Room.BubbleDuration()),
	)
	bus := feed.NewBus()

	s := &roomStack{
		log:          log,
		store:        st,
		bus:          bus,
		sched:        sched,
		tracker:      tracker,
		bubbles:      bubbles,
		pollInterval: cfg.Store.PollInterval(),
	}

	opts := []presence.Option{
		presence.WithLogger(log),
		presence.WithScheduler(sched),
		presence.WithHistoryLimit(cfg.Room.HistoryLimit),
		presence.WithFadeInterval(cfg.Room.FadeInterval()),
	}
	if withEvent {
		event, err := newChaosEvent(cfg.Event, bubbles, sched, log)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		s.event = event
		opts = append(opts, presence.WithBots(event))
	}
	s.presence = presence.New(st, bus, tracker, bubbles, opts...)
	return s, nil
}

// start runs the scheduler and the store watcher, then starts presence and
// the event.
func (s *roomStack) start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		_ = s.sched.Run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		if err := s.store.Watch(ctx, s.bus, s.pollInterval, s.log); err != nil {
			s.log.Error("Store watch stopped", "error", err)
		}
	}()

	if err := s.presence.Start(ctx); err != nil {
		return err
	}
	if s.event != nil {
		if err := s.event.Start(); err != nil {
			return err
		}
	}
	return nil
}

func (s *roomStack) close() {
	if s.event != nil {
		s.event.Stop()
	}
	s.presence.Close()
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.bus.Close()
	if err := s.store.Close(); err != nil {
		s.log.Warn("Failed to close store", "error", err)
	}
}

func newChaosEvent(cfg config.EventConfig, poster chaos.Poster, sched *schedule.Scheduler, log *slog.Logger) (*chaos.Event, error) {
	catalog, err := bot.DefaultCatalog()
	if err != nil {
		return nil, fmt.Errorf("load asset catalog: %w", err)
	}
	quotes, err := bot.DefaultQuotes()
	if err != nil {
		return nil, fmt.Errorf("load quotes: %w", err)
	}

	genOpts := []bot.GeneratorOption{bot.WithAdjectives(quotes.Adjectives)}
	if cfg.Seed != 0 {
		genOpts = append(genOpts, bot.WithRand(rand.New(rand.NewPCG(cfg.Seed, cfg.Seed>>1))))
	}
	gen, err := bot.NewGenerator(catalog, genOpts...)
	if err != nil {
		return nil, err
	}

	return chaos.NewEvent(chaosConfig(cfg), gen, quotes, poster, sched, log), nil
}

// chaosConfig converts file settings to event pacing. Zero fields keep the
// event defaults.
func chaosConfig(cfg config.EventConfig) chaos.Config {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	sec := func(v int) time.Duration { return time.Duration(v) * time.Second }

	return chaos.Config{
		InitialBots:     cfg.InitialBots,
		SpawnInterval:   ms(cfg.SpawnIntervalMS),
		MaxSpawnBatch:   cfg.MaxSpawnBatch,
		MaxBots:         cfg.MaxBots,
		MessageInterval: ms(cfg.MessageIntervalMS),
		Cooldown:        ms(cfg.CooldownMS),
		MinFraction:     cfg.MinFraction,
		MaxFraction:     cfg.MaxFraction,
		RampHorizon:     sec(cfg.RampSeconds),
		EscalateAt:      cfg.EscalateAt,
		PopupDelay:      sec(cfg.PopupDelaySeconds),
		PopupInterval:   ms(cfg.PopupIntervalMS),
		PopupLifetime:   ms(cfg.PopupLifetimeMS),
		PopupFade:       ms(cfg.PopupFadeMS),
		Deadline:        sec(cfg.DeadlineSeconds),
	}
}
