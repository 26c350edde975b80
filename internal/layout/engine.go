package layout

import (
	"log/slog"
	"sync"
	"time"

	"github.com/starford/historian/internal/models"
)

// State is the runner state.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// dragAlphaTarget keeps the simulation warm while a node is held.
const dragAlphaTarget = 0.3

// Snapshot is one emitted set of node positions.
type Snapshot struct {
	Frame     uint64           `json:"frame"`
	Alpha     float64          `json:"alpha"`
	Positions map[string]Point `json:"positions"`
}

// Engine runs a Simulation on frame boundaries. It owns at most one pending
// frame request, runs StepsPerFrame ticks per frame and emits exactly one
// Snapshot per frame.
type Engine struct {
	mu       sync.Mutex
	sim      *Simulation
	sched    FrameScheduler
	state    State
	pending  CancelFunc
	disposed bool

	stepsPerFrame int
	settle        bool
	frames        uint64
	last          Snapshot

	nextSub int
	subs    map[int]func(Snapshot)
	logger  *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithStepsPerFrame sets the number of simulation ticks between emissions.
func WithStepsPerFrame(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.stepsPerFrame = n
		}
	}
}

// WithSettle stops the runner once alpha falls below the simulation's
// AlphaMin and no node is pinned. Graph changes and drags resume it.
func WithSettle(on bool) EngineOption {
	return func(e *Engine) { e.settle = on }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a stopped engine.
func NewEngine(sim *Simulation, sched FrameScheduler, opts ...EngineOption) *Engine {
	e := &Engine{
		sim:           sim,
		sched:         sched,
		stepsPerFrame: 1,
		subs:          map[int]func(Snapshot){},
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subscribe registers fn to receive snapshots. The returned function removes
// the subscription.
func (e *Engine) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

// State returns the current runner state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Last returns the most recently emitted snapshot.
func (e *Engine) Last() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// GraphChanged replaces the node and edge set and (re)starts the runner.
func (e *Engine) GraphChanged(nodes []NodeInput, edges []models.Edge) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	e.sim.SetGraph(nodes, edges)
	e.logger.Debug("layout graph changed", slog.Int("nodes", len(nodes)), slog.Int("edges", len(edges)))
	e.startLocked()
}

// NodeDragged pins id at (x, y) and keeps the runner going.
func (e *Engine) NodeDragged(id string, x, y float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	if !e.sim.Pin(id, x, y) {
		return
	}
	e.sim.SetAlphaTarget(dragAlphaTarget)
	e.startLocked()
}

// DragEnded releases id and lets the simulation cool.
func (e *Engine) DragEnded(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	e.sim.Unpin(id)
	e.sim.SetAlphaTarget(0)
	e.startLocked()
}

// Dispose stops the runner, cancels the pending frame and drops all
// subscribers. Later inputs are ignored.
func (e *Engine) Dispose() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	e.disposed = true
	e.state = Stopped
	if e.pending != nil {
		e.pending()
		e.pending = nil
	}
	clear(e.subs)
}

func (e *Engine) startLocked() {
	e.state = Running
	if e.pending == nil {
		e.pending = e.sched.RequestFrame(e.frame)
	}
}

func (e *Engine) frame(time.Time) {
	e.mu.Lock()
	e.pending = nil
	if e.disposed || e.state != Running {
		e.mu.Unlock()
		return
	}

	for i := 0; i < e.stepsPerFrame; i++ {
		e.sim.Tick()
	}
	e.frames++
	snap := Snapshot{Frame: e.frames, Alpha: e.sim.Alpha(), Positions: e.sim.Positions()}
	e.last = snap

	if e.settle && e.sim.Alpha() < e.sim.AlphaMin() && !e.sim.Pinned() {
		e.state = Stopped
		e.logger.Debug("layout settled", slog.Uint64("frames", e.frames))
	} else {
		e.pending = e.sched.RequestFrame(e.frame)
	}

	subs := make([]func(Snapshot), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	e.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
