package engine

import "time"

// Config collects the tunables accepted by New. Zero value is usable;
// New fills in defaults for anything left unset.
type Config struct {
	// WorkerPoolSize records how many cases a worker pool built on top of
	// the Engine may drive concurrently (spec §5, §6.4). The core run loop
	// itself drives one case at a time and does not read this field;
	// worker.New takes its own size argument.
	WorkerPoolSize int

	// JoinTimeoutMs bounds how long a parallel construct may sit at its
	// join step awaiting sibling completion before the case is surfaced as
	// pended rather than silently stalled. Zero means no timeout.
	JoinTimeoutMs int

	// PersistAfterEachStep selects eager persistence (write the snapshot
	// after every dispatch) when true, or lazy persistence (write only when
	// the runnable set empties) when false (spec §6.3 "Persistence contract").
	PersistAfterEachStep bool

	// PathSeparator records the path separator (spec §6.4). It is not
	// consulted: path names are always built and split with '.' (the
	// pathSeparator constant in path.go).
	PathSeparator byte

	// MaxStepsPerDrive bounds how many dispatch iterations one driveLoop
	// invocation performs before returning control to the caller, even if
	// more runnable paths remain (spec supplement, mirrors the teacher's
	// Options.MaxSteps safety net). Zero means unbounded.
	MaxStepsPerDrive int

	// Metrics, when non-nil, receives the active-case gauge, dispatch
	// latency, pend and ticket counts, sanitize repairs and store write
	// failures (see metrics.go).
	Metrics *Metrics

	// EventHook, when non-nil, is invoked for case lifecycle transitions
	// (spec §6.2 "Event Hook"). Hooks must not mutate case state and must
	// not block the run loop for long.
	EventHook EventHook

	// Tracer, when non-nil, wraps Dispatch and fan-out in spans; join
	// advancement is not spanned.
	Tracer *Tracer

	Clock func() time.Time
}

// Option configures a Config. Functional options let callers specify only
// the settings that differ from the defaults, mirroring the teacher's
// graph.Option / graph.New(... options ...) shape.
type Option func(*Config)

func defaultConfig() Config {
	return Config{
		WorkerPoolSize:       4,
		JoinTimeoutMs:        0,
		PersistAfterEachStep: true,
		PathSeparator:        '.',
		MaxStepsPerDrive:     10000,
		Clock:                time.Now,
	}
}

// WithWorkerPoolSize sets Config.WorkerPoolSize. Nothing in the Engine
// reads it back; a worker pool is sized by the argument to worker.New.
func WithWorkerPoolSize(n int) Option {
	return func(c *Config) { c.WorkerPoolSize = n }
}

// WithJoinTimeout sets how long a parallel construct may wait at its join
// before being surfaced as pended.
func WithJoinTimeout(ms int) Option {
	return func(c *Config) { c.JoinTimeoutMs = ms }
}

// WithEagerPersistence selects eager persistence: the run loop persists
// the snapshot after every dispatch (spec §6.3 default).
func WithEagerPersistence() Option {
	return func(c *Config) { c.PersistAfterEachStep = true }
}

// WithLazyPersistence selects lazy persistence: the run loop persists once,
// when the runnable set empties for the quantum.
func WithLazyPersistence() Option {
	return func(c *Config) { c.PersistAfterEachStep = false }
}

// WithPathSeparator sets Config.PathSeparator; path names still use '.'.
func WithPathSeparator(sep byte) Option {
	return func(c *Config) { c.PathSeparator = sep }
}

// WithMaxStepsPerDrive bounds one driveLoop call's dispatch iterations.
func WithMaxStepsPerDrive(n int) Option {
	return func(c *Config) { c.MaxStepsPerDrive = n }
}

// WithMetrics wires a Prometheus-backed Metrics sink into the run loop.
func WithMetrics(m *Metrics) Option {
	return func(c *Config) { c.Metrics = m }
}

// WithEventHook registers a lifecycle observer.
func WithEventHook(h EventHook) Option {
	return func(c *Config) { c.EventHook = h }
}

// WithTracer wires an OpenTelemetry-backed Tracer into the run loop.
func WithTracer(t *Tracer) Option {
	return func(c *Config) { c.Tracer = t }
}

// WithClock overrides the wall-clock source used for CaseState.Timestamp.
// Intended for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(c *Config) { c.Clock = now }
}
