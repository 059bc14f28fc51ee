// Package demo plays scripted disaster scenarios.
//
// The player is a three-state machine (stopped, playing, paused) that owns a
// monotonic elapsed time. Each tick while playing advances elapsed time, looks
// up the latest step whose time has passed and dispatches it when it differs
// from the previously dispatched step.
package demo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rs/xid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/star/satdash/internal/metrics"
)

// State is the player state.
type State string

const (
	StateStopped State = "stopped"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
)

// DefaultTick is the playback tick interval.
const DefaultTick = 100 * time.Millisecond

var (
	// ErrNotPlaying is returned by Pause and TogglePause when nothing is playing.
	ErrNotPlaying = errors.New("demo is not playing")
	// ErrNotPaused is returned by Resume when playback is not paused.
	ErrNotPaused = errors.New("demo is not paused")
	// ErrAlreadyRunning is returned by Start unless the player is stopped.
	ErrAlreadyRunning = errors.New("demo is already running")
	// ErrUnsortedSteps marks a malformed scenario.
	ErrUnsortedSteps = errors.New("scenario steps are not sorted by time")
)

// StepFunc receives a dispatched step and its index.
type StepFunc func(ctx context.Context, index int, step Step)

// Status is a point-in-time view of the player.
type Status struct {
	State      State  `json:"state"`
	Scenario   string `json:"scenario"`
	ScenarioID string `json:"scenario_id"`
	RunID      string `json:"run_id,omitempty"`
	ElapsedMs  int64  `json:"elapsed_ms"`
	DurationMs int64  `json:"duration_ms"`
	StepIndex  int    `json:"step_index"`
	StepTitle  string `json:"step_title,omitempty"`
	TotalSteps int    `json:"total_steps"`
}

// Player plays one scenario. Safe for concurrent use; callbacks run outside
// the player lock and may call back into the player.
type Player struct {
	mu         sync.Mutex
	scenario   Scenario
	state      State
	elapsed    time.Duration
	dispatched int
	runID      string
	invalid    error // set once by NewPlayer for malformed scenarios

	tick    time.Duration
	logger  *slog.Logger
	tracer  trace.Tracer
	onStep  StepFunc
	onError func(title string, err error)
	onState func(Status)
}

// Option configures a Player.
type Option func(*Player)

// WithTick overrides the playback tick interval.
func WithTick(d time.Duration) Option {
	return func(p *Player) {
		if d > 0 {
			p.tick = d
		}
	}
}

// OnStep registers the step dispatch callback.
func OnStep(fn StepFunc) Option {
	return func(p *Player) { p.onStep = fn }
}

// OnError registers the callback invoked when playback halts on an error.
// The title is the notification heading shown to the user.
func OnError(fn func(title string, err error)) Option {
	return func(p *Player) { p.onError = fn }
}

// OnStateChange registers the callback invoked after every state transition.
func OnStateChange(fn func(Status)) Option {
	return func(p *Player) { p.onState = fn }
}

// NewPlayer creates a stopped player for scenario.
func NewPlayer(scenario Scenario, logger *slog.Logger, opts ...Option) *Player {
	p := &Player{
		scenario:   scenario,
		state:      StateStopped,
		dispatched: -1,
		tick:       DefaultTick,
		logger:     logger,
		tracer:     otel.Tracer("satdash/demo"),
	}
	steps := scenario.Steps
	if !sort.SliceIsSorted(steps, func(i, j int) bool { return steps[i].At < steps[j].At }) {
		p.invalid = ErrUnsortedSteps
	}
	for _, opt := range opts {
		opt(p)
	}
	metrics.SetDemoState(string(StateStopped))
	return p
}

// Run advances playback every tick until ctx is cancelled.
func (p *Player) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("demo player stopped")
			return
		case <-ticker.C:
			p.Advance(ctx, p.tick)
		}
	}
}

// Start begins playback from time 0 and dispatches any step at 0.
func (p *Player) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateStopped {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	p.startLocked()
	p.mu.Unlock()

	p.notifyState()
	p.Advance(ctx, 0)
	return nil
}

// Restart stops playback and starts again from time 0.
func (p *Player) Restart(ctx context.Context) {
	p.mu.Lock()
	p.state = StateStopped
	p.startLocked()
	p.mu.Unlock()

	p.notifyState()
	p.Advance(ctx, 0)
}

func (p *Player) startLocked() {
	p.state = StatePlaying
	p.elapsed = 0
	p.dispatched = -1
	p.runID = xid.New().String()
	p.logger.Info("demo started", "scenario", p.scenario.ID, "run_id", p.runID)
}

// Pause holds playback at the current elapsed time.
func (p *Player) Pause() error {
	return p.transition(StatePlaying, StatePaused, ErrNotPlaying)
}

// Resume continues playback from where it was paused.
func (p *Player) Resume() error {
	return p.transition(StatePaused, StatePlaying, ErrNotPaused)
}

// TogglePause pauses a playing demo or resumes a paused one.
func (p *Player) TogglePause() error {
	p.mu.Lock()
	state := p.state
	p.mu.Unlock()

	switch state {
	case StatePlaying:
		return p.Pause()
	case StatePaused:
		return p.Resume()
	default:
		return ErrNotPlaying
	}
}

// Stop halts playback. Stopping a stopped player is a no-op.
func (p *Player) Stop() {
	p.mu.Lock()
	if p.state == StateStopped {
		p.mu.Unlock()
		return
	}
	p.state = StateStopped
	p.mu.Unlock()

	p.notifyState()
}

func (p *Player) transition(from, to State, notInFrom error) error {
	p.mu.Lock()
	if p.state != from {
		p.mu.Unlock()
		return notInFrom
	}
	p.state = to
	p.mu.Unlock()

	p.notifyState()
	return nil
}

// Advance moves a playing demo forward by d and dispatches the current step
// if it changed. Reaching the scenario duration stops playback after the
// final dispatch. It is a no-op unless the player is playing.
func (p *Player) Advance(ctx context.Context, d time.Duration) {
	p.mu.Lock()
	if p.state != StatePlaying {
		p.mu.Unlock()
		return
	}

	p.elapsed += d
	finished := p.scenario.Duration > 0 && p.elapsed >= p.scenario.Duration
	if finished {
		p.elapsed = p.scenario.Duration
	}

	if p.invalid != nil {
		p.state = StateStopped
		p.mu.Unlock()
		p.fail(p.invalid)
		return
	}
	idx := p.lookup(p.elapsed)

	var (
		step     Step
		dispatch bool
	)
	if idx >= 0 && idx != p.dispatched {
		p.dispatched = idx
		step = p.scenario.Steps[idx]
		dispatch = true
	}
	if finished {
		p.state = StateStopped
	}
	p.mu.Unlock()

	if dispatch {
		if err := p.dispatch(ctx, idx, step); err != nil {
			p.mu.Lock()
			p.state = StateStopped
			p.mu.Unlock()
			p.fail(err)
			return
		}
	}
	if finished {
		p.logger.Info("demo finished", "scenario", p.scenario.ID)
		p.notifyState()
	}
}

// lookup returns the index of the latest step at or before elapsed, or -1.
// Caller holds mu.
func (p *Player) lookup(elapsed time.Duration) int {
	steps := p.scenario.Steps
	return sort.Search(len(steps), func(i int) bool { return steps[i].At > elapsed }) - 1
}

// dispatch invokes the step callback, converting a panic into an error.
func (p *Player) dispatch(ctx context.Context, idx int, step Step) (err error) {
	ctx, span := p.tracer.Start(ctx, "demo.dispatch", trace.WithAttributes(
		attribute.Int("step_index", idx),
		attribute.String("step_title", step.Title),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step %d %q: %v", idx, step.Title, r)
		}
	}()

	p.logger.Debug("demo step", "index", idx, "title", step.Title, "at_ms", step.At.Milliseconds())
	metrics.IncDemoSteps()
	if p.onStep != nil {
		p.onStep(ctx, idx, step)
	}
	return nil
}

func (p *Player) fail(err error) {
	p.logger.Error("demo playback halted", "scenario", p.scenario.ID, "error", err)
	metrics.IncDemoErrors()
	if p.onError != nil {
		p.onError("Demo Error", err)
	}
	p.notifyState()
}

func (p *Player) notifyState() {
	st := p.Status()
	metrics.SetDemoState(string(st.State))
	if p.onState != nil {
		p.onState(st)
	}
}

// Status returns the current player state.
func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := Status{
		State:      p.state,
		Scenario:   p.scenario.Name,
		ScenarioID: p.scenario.ID,
		RunID:      p.runID,
		ElapsedMs:  p.elapsed.Milliseconds(),
		DurationMs: p.scenario.Duration.Milliseconds(),
		StepIndex:  p.dispatched,
		TotalSteps: len(p.scenario.Steps),
	}
	if p.dispatched >= 0 && p.dispatched < len(p.scenario.Steps) {
		st.StepTitle = p.scenario.Steps[p.dispatched].Title
	}
	return st
}

// Elapsed returns the elapsed playback time.
func (p *Player) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.elapsed
}

// Scenario returns the scenario being played.
func (p *Player) Scenario() Scenario {
	return p.scenario
}
