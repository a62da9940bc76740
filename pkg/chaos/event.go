// Package chaos runs the bot "chaos event": bots pile into the room, chatter
// faster and faster, error popups start appearing, and at a fixed deadline
// everything freezes behind a blue screen.
package chaos

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/samber/lo"

	"dollhouse/pkg/bot"
	"dollhouse/pkg/bubble"
	"dollhouse/pkg/room"
	"dollhouse/pkg/schedule"
)

// State is the event's lifecycle position.
type State int

const (
	Idle State = iota
	Running
	Terminal
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Terminal:
		return "terminal"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var ErrNotIdle = errors.New("chaos event already started")

const (
	taskSpawn      = "chaos.spawn"
	taskMessage    = "chaos.message"
	taskPopupStart = "chaos.popup_start"
	taskPopup      = "chaos.popup"
	taskDeadline   = "chaos.deadline"
)

// Config holds the pacing of one event.
type Config struct {
	InitialBots   int
	SpawnInterval time.Duration
	MaxSpawnBatch int
	MaxBots       int

	MessageInterval time.Duration
	Cooldown        time.Duration
	MinFraction     float64
	MaxFraction     float64
	RampHorizon     time.Duration
	// EscalateAt is the ramp progress (0..1) from which bots switch to the
	// escalating quote pool.
	EscalateAt float64

	PopupDelay    time.Duration
	PopupInterval time.Duration
	PopupLifetime time.Duration
	PopupFade     time.Duration

	Deadline time.Duration
}

// DefaultConfig is a ten minute event.
func DefaultConfig() Config {
	return Config{
		InitialBots:     3,
		SpawnInterval:   15 * time.Second,
		MaxSpawnBatch:   3,
		MaxBots:         200,
		MessageInterval: 4 * time.Second,
		Cooldown:        8 * time.Second,
		MinFraction:     0.1,
		MaxFraction:     0.5,
		RampHorizon:     10 * time.Minute,
		EscalateAt:      0.5,
		PopupDelay:      3 * time.Minute,
		PopupInterval:   8 * time.Second,
		PopupLifetime:   10 * time.Second,
		PopupFade:       3 * time.Second,
		Deadline:        10 * time.Minute,
	}
}

// withDefaults fills every unset field from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.InitialBots <= 0 {
		c.InitialBots = d.InitialBots
	}
	if c.SpawnInterval <= 0 {
		c.SpawnInterval = d.SpawnInterval
	}
	if c.MaxSpawnBatch <= 0 {
		c.MaxSpawnBatch = d.MaxSpawnBatch
	}
	if c.MaxBots <= 0 {
		c.MaxBots = d.MaxBots
	}
	if c.MessageInterval <= 0 {
		c.MessageInterval = d.MessageInterval
	}
	if c.Cooldown <= 0 {
		c.Cooldown = d.Cooldown
	}
	if c.MinFraction <= 0 {
		c.MinFraction = d.MinFraction
	}
	if c.MaxFraction <= 0 {
		c.MaxFraction = d.MaxFraction
	}
	c.MinFraction = min(c.MinFraction, 1)
	c.MaxFraction = min(c.MaxFraction, 1)
	if c.MaxFraction < c.MinFraction {
		c.MaxFraction = c.MinFraction
	}
	if c.RampHorizon <= 0 {
		c.RampHorizon = d.RampHorizon
	}
	if c.EscalateAt <= 0 {
		c.EscalateAt = d.EscalateAt
	}
	if c.PopupDelay <= 0 {
		c.PopupDelay = d.PopupDelay
	}
	if c.PopupInterval <= 0 {
		c.PopupInterval = d.PopupInterval
	}
	if c.PopupLifetime <= 0 {
		c.PopupLifetime = d.PopupLifetime
	}
	if c.PopupFade <= 0 {
		c.PopupFade = d.PopupFade
	}
	if c.Deadline <= 0 {
		c.Deadline = d.Deadline
	}
	return c
}

// Poster receives the lines bots say.
type Poster interface {
	Post(characterID, content string) map[string]room.DisplayMessage
}

// Stats counts what an event has produced so far.
type Stats struct {
	State        State
	Bots         int
	MessagesSent int
	PopupsShown  int
}

// Event is the chaos state machine: Idle, then Running after Start, then
// Terminal at the deadline. Stop tears it down early.
type Event struct {
	cfg    Config
	gen    *bot.Generator
	quotes bot.Quotes
	poster Poster
	sched  *schedule.Scheduler
	log    *slog.Logger

	mu           sync.Mutex
	state        State
	startedAt    time.Time
	bots         []room.BotActor
	lastSpoke    map[string]time.Time
	popups       []room.Popup
	messagesSent int
	popupsShown  int
	tasks        map[string]*schedule.Task
	onTerminal   []func()
}

// NewEvent wires an event to its generator, quote pools, bubble sink and
// scheduler. The event does not start until Start is called.
func NewEvent(cfg Config, gen *bot.Generator, quotes bot.Quotes, poster Poster, sched *schedule.Scheduler, log *slog.Logger) *Event {
	if log == nil {
		log = slog.Default()
	}
	return &Event{
		cfg:       cfg.withDefaults(),
		gen:       gen,
		quotes:    quotes,
		poster:    poster,
		sched:     sched,
		log:       log.With("component", "chaos.event"),
		lastSpoke: make(map[string]time.Time),
		tasks:     make(map[string]*schedule.Task),
	}
}

// Config returns the effective pacing after defaults.
func (e *Event) Config() Config {
	return e.cfg
}

// Start spawns the first bots and arms every timer.
func (e *Event) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Idle {
		return fmt.Errorf("%w (state %s)", ErrNotIdle, e.state)
	}

	now := e.sched.Now()
	e.startedAt = now
	e.state = Running
	e.spawnLocked(e.cfg.InitialBots, now)

	// The deadline is registered first so it wins any tie with the periodic
	// tasks at the same instant.
	e.tasks[taskDeadline] = e.sched.After(taskDeadline, e.cfg.Deadline, e.onDeadline)
	e.tasks[taskSpawn] = e.sched.Every(taskSpawn, e.cfg.SpawnInterval, e.onSpawn)
	e.tasks[taskMessage] = e.sched.Every(taskMessage, e.cfg.MessageInterval, e.onMessage)
	e.tasks[taskPopupStart] = e.sched.After(taskPopupStart, e.cfg.PopupDelay, e.onPopupStart)

	e.log.Info("Chaos event started", "bots", len(e.bots), "deadline", e.cfg.Deadline)
	return nil
}

// Stop cancels every timer. It is safe to call more than once.
func (e *Event) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelTasksLocked()
	if e.state == Idle || e.state == Running {
		e.state = Stopped
		e.log.Info("Chaos event stopped", "bots", len(e.bots))
	}
}

// OnTerminal registers fn to run once when the deadline is reached.
func (e *Event) OnTerminal(fn func()) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTerminal = append(e.onTerminal, fn)
}

// State returns the current lifecycle state.
func (e *Event) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Terminal reports whether the blue screen is latched.
func (e *Event) Terminal() bool {
	return e.State() == Terminal
}

// Bots returns a copy of every bot spawned so far.
func (e *Event) Bots() []room.BotActor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]room.BotActor(nil), e.bots...)
}

// Spawned is the number of bots created so far.
func (e *Event) Spawned() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.bots)
}

// Popups returns the popups still visible at now with their current opacity.
func (e *Event) Popups(now time.Time) []room.Popup {
	e.mu.Lock()
	defer e.mu.Unlock()

	visible := lo.Filter(e.popups, func(p room.Popup, _ int) bool {
		return now.Sub(p.CreatedAt) < e.cfg.PopupLifetime
	})
	return lo.Map(visible, func(p room.Popup, _ int) room.Popup {
		p.Opacity = bubble.Opacity(now.Sub(p.CreatedAt), e.cfg.PopupLifetime, e.cfg.PopupFade)
		return p
	})
}

// Stats summarises the event so far.
func (e *Event) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		State:        e.state,
		Bots:         len(e.bots),
		MessagesSent: e.messagesSent,
		PopupsShown:  e.popupsShown,
	}
}

// Progress is how far along the escalation ramp the event is at now, 0..1.
func (e *Event) Progress(now time.Time) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progressLocked(now)
}

func (e *Event) progressLocked(now time.Time) float64 {
	if e.startedAt.IsZero() {
		return 0
	}
	elapsed := now.Sub(e.startedAt)
	if elapsed <= 0 {
		return 0
	}
	return math.Min(1, float64(elapsed)/float64(e.cfg.RampHorizon))
}

// SpawnBatchSize grows by one bot per ten already spawned, up to maxBatch.
func SpawnBatchSize(spawned, maxBatch int) int {
	return min(maxBatch, spawned/10+1)
}

func (e *Event) onSpawn(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Running {
		return
	}

	batch := SpawnBatchSize(len(e.bots), e.cfg.MaxSpawnBatch)
	added := e.spawnLocked(batch, now)
	if added > 0 {
		e.log.Debug("Spawned bots", "added", added, "total", len(e.bots))
	}
}

func (e *Event) spawnLocked(n int, now time.Time) int {
	n = min(n, e.cfg.MaxBots-len(e.bots))
	for i := 0; i < n; i++ {
		e.bots = append(e.bots, e.gen.CreateBot(now))
	}
	return max(n, 0)
}

func (e *Event) onMessage(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Running || len(e.bots) == 0 {
		return
	}

	available := lo.Filter(e.bots, func(b room.BotActor, _ int) bool {
		last, ok := e.lastSpoke[b.ID]
		return !ok || now.Sub(last) >= e.cfg.Cooldown
	})
	if len(available) == 0 {
		clear(e.lastSpoke)
		available = e.bots
	}

	progress := e.progressLocked(now)
	fraction := e.cfg.MinFraction + progress*(e.cfg.MaxFraction-e.cfg.MinFraction)
	count := min(len(available), max(1, int(math.Floor(float64(len(available))*fraction))))

	ids := lo.Map(available, func(b room.BotActor, _ int) string { return b.ID })
	selected := e.gen.Shuffle(ids)[:count]

	pool := e.quotePool(progress)
	for _, id := range selected {
		e.poster.Post(id, e.gen.RandomQuote(pool))
		e.lastSpoke[id] = now
	}
	e.messagesSent += len(selected)
}

func (e *Event) quotePool(progress float64) []string {
	if progress >= e.cfg.EscalateAt && len(e.quotes.Escalating) > 0 {
		return e.quotes.Escalating
	}
	if len(e.quotes.Ambient) > 0 {
		return e.quotes.Ambient
	}
	return e.quotes.Escalating
}

func (e *Event) onPopupStart(time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Running {
		return
	}
	e.tasks[taskPopup] = e.sched.Every(taskPopup, e.cfg.PopupInterval, e.onPopup)
	e.log.Info("Error popups started")
}

func (e *Event) onPopup(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Running {
		return
	}

	e.popups = lo.Filter(e.popups, func(p room.Popup, _ int) bool {
		return now.Sub(p.CreatedAt) < e.cfg.PopupLifetime
	})
	e.popups = append(e.popups, room.Popup{
		ID:        fmt.Sprintf("error_%d_%06x", now.UnixMilli(), e.gen.IntN(1<<24)),
		Left:      10 + e.gen.IntN(70),
		Top:       10 + e.gen.IntN(70),
		Scale:     0.7 + e.gen.Float64()*0.6,
		Rotation:  e.gen.IntN(10) - 5,
		Opacity:   1,
		CreatedAt: now,
	})
	e.popupsShown++
}

func (e *Event) onDeadline(time.Time) {
	e.mu.Lock()
	if e.state != Running {
		e.mu.Unlock()
		return
	}
	e.cancelTasksLocked()
	e.state = Terminal
	hooks := append([]func(){}, e.onTerminal...)
	e.log.Warn("Chaos event reached terminal state", "bots", len(e.bots), "messages", e.messagesSent, "popups", e.popupsShown)
	e.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

func (e *Event) cancelTasksLocked() {
	for name, task := range e.tasks {
		task.Cancel()
		delete(e.tasks, name)
	}
}
