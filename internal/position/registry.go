// Package position owns every Position record and the lifecycle of its
// exit monitor. Each live Position struct belongs to its monitor
// goroutine; the registry keeps snapshots refreshed on confirmed state
// changes, so readers never touch a struct a monitor is mutating.
package position

import (
	"context"
	"log"
	"sync"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/monitor"
	"solana-pool-sniper/internal/observability"
)

// DefaultUpdateBuffer bounds the outbound update channel.
const DefaultUpdateBuffer = 256

// Store persists position state changes. Optional.
type Store interface {
	Insert(ctx context.Context, pos *domain.Position) error
	Update(ctx context.Context, pos *domain.Position) error
}

// Options configures the Registry.
type Options struct {
	// Exit is the monitor template: trader, tick recorder and exit policy.
	// Position and Notify are filled per spawn.
	Exit monitor.Options

	Store        Store
	UpdateBuffer int
	Logger       *log.Logger
}

// active pairs a position snapshot with its monitor's cancel func. The
// live Position struct belongs to the monitor goroutine; the registry
// only ever holds snapshots, refreshed on each confirmed state change.
type active struct {
	pos    domain.Position
	cancel context.CancelFunc
}

// Registry tracks open positions and their monitors. Closed positions
// move to history and stay in the store; only the active set shrinks.
type Registry struct {
	exit   monitor.Options
	store  Store
	logger *log.Logger

	mu      sync.Mutex
	active  map[string]*active
	history []domain.Position

	updates chan domain.PositionUpdate

	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a Registry.
func New(opts Options) *Registry {
	if opts.UpdateBuffer <= 0 {
		opts.UpdateBuffer = DefaultUpdateBuffer
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		exit:      opts.Exit,
		store:     opts.Store,
		logger:    opts.Logger,
		active:    make(map[string]*active),
		updates:   make(chan domain.PositionUpdate, opts.UpdateBuffer),
		runCtx:    ctx,
		runCancel: cancel,
	}
}

// Updates returns the bounded position-update stream. Updates that would
// block are dropped, never the monitors.
func (r *Registry) Updates() <-chan domain.PositionUpdate {
	return r.updates
}

// Open registers a freshly entered position and spawns its monitor.
func (r *Registry) Open(ctx context.Context, pos *domain.Position) error {
	r.mu.Lock()
	r.active[pos.ID] = &active{pos: *pos}
	count := len(r.active)
	r.mu.Unlock()

	observability.SetOpenPositions(count)

	if r.store != nil {
		if err := r.store.Insert(ctx, pos); err != nil {
			r.logger.Printf("persist position %s: %v", pos.ID, err)
		}
	}

	r.publish(domain.PositionUpdate{
		Kind:     domain.UpdateOpened,
		Position: *pos,
		At:       pos.EntryAt,
	})

	r.spawn(pos)
	r.logger.Printf("position %s opened, %d active", pos.ID, count)
	return nil
}

// spawn starts the monitor goroutine for a position.
func (r *Registry) spawn(pos *domain.Position) {
	opts := r.exit
	opts.Position = pos
	opts.Notify = func(u domain.PositionUpdate) { r.onUpdate(u) }
	m := monitor.New(opts)

	ctx, cancel := context.WithCancel(r.runCtx)

	r.mu.Lock()
	if entry, ok := r.active[pos.ID]; ok {
		entry.cancel = cancel
	}
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		m.Run(ctx)
	}()
}

// onUpdate handles a monitor notification: persist, retire closed
// positions from the active set, forward downstream.
func (r *Registry) onUpdate(u domain.PositionUpdate) {
	if r.store != nil {
		if err := r.store.Update(context.Background(), &u.Position); err != nil {
			r.logger.Printf("persist update %s: %v", u.Position.ID, err)
		}
	}

	if u.Kind == domain.UpdateClosed {
		r.mu.Lock()
		if entry, ok := r.active[u.Position.ID]; ok {
			delete(r.active, u.Position.ID)
			if entry.cancel != nil {
				entry.cancel()
			}
		}
		r.history = append(r.history, u.Position)
		count := len(r.active)
		r.mu.Unlock()
		observability.SetOpenPositions(count)
	} else {
		// Refresh the snapshot so Active reflects the confirmed change.
		r.mu.Lock()
		if entry, ok := r.active[u.Position.ID]; ok {
			entry.pos = u.Position
		}
		r.mu.Unlock()
	}

	r.publish(u)
}

// publish forwards an update without ever blocking a monitor.
func (r *Registry) publish(u domain.PositionUpdate) {
	select {
	case r.updates <- u:
	default:
		observability.RecordUpdateDropped()
		r.logger.Printf("update channel full, dropped %s for %s", u.Kind, u.Position.ID)
	}
}

// Active returns snapshots of the currently monitored positions, current
// as of each position's last confirmed state change.
func (r *Registry) Active() []domain.Position {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Position, 0, len(r.active))
	for _, entry := range r.active {
		out = append(out, entry.pos)
	}
	return out
}

// History returns copies of the closed positions from this run.
func (r *Registry) History() []domain.Position {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Position, len(r.history))
	copy(out, r.history)
	return out
}

// Shutdown cancels every monitor and waits for them to stop.
func (r *Registry) Shutdown() {
	r.runCancel()
	r.wg.Wait()
	close(r.updates)
	r.logger.Printf("all monitors stopped")
}
