package view

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"eventScope/internal/network"
)

// ErrStale is returned when a completion was superseded by a newer request.
var ErrStale = errors.New("stale result discarded")

// State is the lifecycle of a View.
type State int

const (
	Idle State = iota
	Loading
	Ready
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Runner produces a Result for an address on a network.
type Runner interface {
	Run(ctx context.Context, address string, net network.Network) (*Result, error)
}

// Snapshot is a consistent copy of a View's state.
type Snapshot struct {
	State      State
	Address    string
	Network    network.Network
	Result     *Result
	Err        error
	Generation uint64
}

// View holds the latest selection and its result. Only the most recent
// request may transition the view out of Loading.
type View struct {
	runner   Runner
	onChange func(Snapshot)
	logger   *zap.Logger

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	snap   Snapshot

	// notifyMu orders callbacks; delivered is the newest generation handed out.
	notifyMu  sync.Mutex
	delivered uint64
}

// New builds an idle View. onChange may be nil. Callbacks are serialized and
// never see a generation older than one already delivered; onChange must not
// call Select, Start or Reset.
func New(runner Runner, onChange func(Snapshot), logger *zap.Logger) *View {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &View{
		runner:   runner,
		onChange: onChange,
		logger:   logger,
	}
}

// Select starts a request for address on net and blocks until it completes.
// An empty address returns the view to Idle. A request superseded by a later
// Select, Start or Reset returns ErrStale and leaves the view untouched.
func (v *View) Select(ctx context.Context, address string, net network.Network) error {
	return v.begin(ctx, address, net)()
}

// Start supersedes the current request before returning and runs the new one
// in the background. The channel yields what Select would have returned.
func (v *View) Start(ctx context.Context, address string, net network.Network) <-chan error {
	done := make(chan error, 1)
	run := v.begin(ctx, address, net)
	go func() {
		done <- run()
	}()
	return done
}

func (v *View) begin(ctx context.Context, address string, net network.Network) func() error {
	address = strings.TrimSpace(address)

	v.mu.Lock()
	gen := v.supersedeLocked()
	if address == "" {
		v.snap = Snapshot{State: Idle, Generation: gen}
		snap := v.snap
		v.mu.Unlock()
		v.notify(snap)
		return func() error { return nil }
	}

	runCtx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.snap = Snapshot{
		State:      Loading,
		Address:    address,
		Network:    net,
		Generation: gen,
	}
	snap := v.snap
	v.mu.Unlock()
	v.notify(snap)

	return func() error {
		defer cancel()
		result, err := v.runner.Run(runCtx, address, net)
		return v.complete(gen, address, result, err)
	}
}

func (v *View) complete(gen uint64, address string, result *Result, err error) error {
	v.mu.Lock()
	if gen != v.gen {
		v.mu.Unlock()
		v.logger.Debug("discarding stale result",
			zap.String("address", address),
			zap.Uint64("generation", gen),
		)
		return ErrStale
	}
	v.cancel = nil
	if err != nil {
		v.snap.State = Error
		v.snap.Err = err
	} else {
		v.snap.State = Ready
		v.snap.Result = result
	}
	snap := v.snap
	v.mu.Unlock()
	v.notify(snap)
	return err
}

// Reset cancels any in-flight request and returns the view to Idle.
func (v *View) Reset() {
	v.mu.Lock()
	gen := v.supersedeLocked()
	v.snap = Snapshot{State: Idle, Generation: gen}
	snap := v.snap
	v.mu.Unlock()
	v.notify(snap)
}

// Snapshot returns the current state.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snap
}

func (v *View) supersedeLocked() uint64 {
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.gen++
	return v.gen
}

func (v *View) notify(snap Snapshot) {
	if v.onChange == nil {
		return
	}
	v.notifyMu.Lock()
	defer v.notifyMu.Unlock()
	if snap.Generation < v.delivered {
		v.logger.Debug("dropping superseded notification",
			zap.String("state", snap.State.String()),
			zap.Uint64("generation", snap.Generation),
		)
		return
	}
	v.delivered = snap.Generation
	v.onChange(snap)
}
