// Package autosave protects in-progress edits of one document against network
// loss, server rejection and concurrent editors.
//
// A Controller turns a stream of draft changes into sequential save attempts:
// changes are coalesced over a quiet period, at most one save is in flight at
// a time, unconfirmed values are kept in an offline backup, and the backup is
// replayed once when connectivity returns. Every outcome is reported as State;
// nothing is returned to or thrown at the caller.
//
// All transitions run on one goroutine per controller, so the machine itself
// needs no locking beyond publishing State.
package autosave

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"proposaldesk/internal/connectivity"
	"proposaldesk/internal/debounce"
	"proposaldesk/internal/offline"
	"proposaldesk/internal/record"
)

const defaultDelay = 2 * time.Second

// SaveFunc persists value. It may block for as long as its transport allows.
type SaveFunc[T any] func(ctx context.Context, value T) error

type Options struct {
	// Delay is the quiet period before a change is saved.
	Delay   time.Duration
	Clock   Clock
	Logger  *slog.Logger
	// Version, when set, reports the record version the draft is edited
	// against. It is stored under BaseKey next to every backup so a later
	// session can replay the backup against that version.
	Version func() int
}

type Controller[T any] struct {
	key     string
	ctx     context.Context
	save    SaveFunc[T]
	backup  *offline.Value[T]
	// base is nil when no version is recorded next to the backup.
	base    *offline.Value[int]
	version func() int
	signal  connectivity.Signal
	clock   Clock
	delay   time.Duration
	logger  *slog.Logger

	events       chan func()
	done         chan struct{}
	stopped      chan struct{}
	closeOnce    sync.Once
	cancelSignal func()

	// Owned by the loop goroutine.
	debouncer        debounce.Debouncer[T]
	timer            Timer
	online           bool
	latest           T
	hasLatest        bool
	lastSavedEnc     []byte
	lastSavedAt      *time.Time
	inFlight         bool
	flushAfterSettle bool
	reconnectPending bool
	conflicted       bool
	conflictErr      error
	refusedEnc       []byte
	rejected         T
	hasRejected      bool

	mu          sync.RWMutex
	state       State
	watchers    map[int]func(State)
	nextWatcher int
}

// New starts a controller for key. Saves run with ctx; closing the
// controller does not cancel them, it only stops observing their results.
func New[T any](ctx context.Context, key string, save SaveFunc[T], store offline.Store, signal connectivity.Signal, opts Options) *Controller[T] {
	if opts.Delay <= 0 {
		opts.Delay = defaultDelay
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With("key", key)

	c := &Controller[T]{
		key:      key,
		ctx:      ctx,
		save:     save,
		backup:   offline.Bind[T](ctx, store, key, logger),
		version:  opts.Version,
		signal:   signal,
		clock:    opts.Clock,
		delay:    opts.Delay,
		logger:   logger,
		events:   make(chan func(), 64),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		watchers: make(map[int]func(State)),
	}
	if opts.Version != nil {
		c.base = offline.Bind[int](ctx, store, BaseKey(key), logger)
	}
	// Subscribed before the first read so no transition falls in between.
	// Notifications only carry the news of a change; the loop re-reads the
	// signal.
	c.cancelSignal = signal.Subscribe(func(bool) {
		c.post(c.onConnectivity)
	})
	c.online = signal.Online()
	c.state = State{Status: StatusIdle, Offline: !c.online}
	go c.run()
	return c
}

func (c *Controller[T]) Key() string {
	return c.key
}

func (c *Controller[T]) run() {
	defer close(c.stopped)
	for {
		select {
		case fn := <-c.events:
			fn()
		case <-c.done:
			return
		}
	}
}

func (c *Controller[T]) post(fn func()) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.events <- fn:
		return true
	case <-c.done:
		return false
	}
}

// call runs fn on the loop and waits for it.
func (c *Controller[T]) call(fn func()) bool {
	finished := make(chan struct{})
	if !c.post(func() { fn(); close(finished) }) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-c.stopped:
		return false
	}
}

// sync waits until every event posted so far has been handled.
func (c *Controller[T]) sync() {
	c.call(func() {})
}

// Change reports a new draft value.
func (c *Controller[T]) Change(value T) {
	c.post(func() { c.onChange(value) })
}

// Save submits the latest draft now, skipping the quiet period.
func (c *Controller[T]) Save() {
	c.post(c.onManualSave)
}

// State returns the current snapshot.
func (c *Controller[T]) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Watch calls fn after every transition. fn runs on the controller goroutine
// and must not block or call back into the controller synchronously.
func (c *Controller[T]) Watch(fn func(State)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextWatcher
	c.nextWatcher++
	c.watchers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.watchers, id)
		})
	}
}

// Backup returns the offline backup for this key as last seen, including
// writes made by other instances.
func (c *Controller[T]) Backup() (T, bool) {
	return c.backup.Mirror()
}

// Resolve is called after the caller re-fetched the record following a
// conflict. current becomes the saved baseline; the rejected draft is handed
// back so the user can reapply it, and the backup holding it is dropped.
func (c *Controller[T]) Resolve(current T) (T, bool) {
	var (
		rejected T
		ok       bool
	)
	c.call(func() {
		rejected, ok = c.rejected, c.hasRejected
		if !ok {
			rejected, ok = c.backup.Load(c.ctx)
		}
		c.stopTimer()
		c.debouncer.Cancel()
		c.flushAfterSettle = false
		c.conflicted = false
		c.conflictErr = nil
		c.refusedEnc = nil
		c.hasRejected = false
		var zero T
		c.rejected = zero

		if enc, err := debounce.Encode(current); err == nil {
			c.lastSavedEnc = enc
		}
		c.latest, c.hasLatest = current, true
		if err := c.backup.Remove(c.ctx); err != nil {
			c.logger.Warn("autosave: remove backup after resolve", "error", err)
		} else {
			c.dropBase()
		}
		c.setState(StatusSaved, nil)
	})
	return rejected, ok
}

// Close cancels any pending debounce and stops the controller. A pending
// value is written to the backup first; an existing backup is never removed.
func (c *Controller[T]) Close() {
	c.closeOnce.Do(func() {
		c.cancelSignal()
		c.call(func() {
			c.stopTimer()
			if value, ok := c.debouncer.Take(); ok {
				c.writeBackup(value)
			}
		})
		close(c.done)
		<-c.stopped
		c.backup.Close()
		if c.base != nil {
			c.base.Close()
		}
	})
}

func (c *Controller[T]) onChange(value T) {
	c.latest, c.hasLatest = value, true
	if c.conflicted {
		// Saving against the stale version would be rejected again. The draft
		// is kept locally until Resolve.
		c.rejected, c.hasRejected = value, true
		c.writeBackup(value)
		c.setState(StatusError, c.conflictErr)
		return
	}

	enc, err := debounce.Encode(value)
	if err != nil {
		c.stopTimer()
		c.debouncer.Cancel()
		c.setState(StatusError, encodeError(err))
		return
	}
	if !c.inFlight && debounce.Equal(enc, c.lastSavedEnc) {
		c.stopTimer()
		c.debouncer.Cancel()
		c.settleUnchanged()
		return
	}
	if !c.online {
		c.stopTimer()
		c.debouncer.Cancel()
		c.storeOffline(value)
		return
	}

	gen := c.debouncer.Push(value)
	c.armTimer(gen)
	if !c.inFlight {
		c.setState(StatusIdle, nil)
	}
}

func (c *Controller[T]) onManualSave() {
	if c.conflicted {
		return
	}
	c.stopTimer()
	value, ok := c.debouncer.Take()
	if !ok {
		if !c.hasLatest {
			return
		}
		value = c.latest
	}
	if c.inFlight {
		c.debouncer.Hold(value)
		c.flushAfterSettle = true
		return
	}
	c.dispatch(value)
}

func (c *Controller[T]) armTimer(gen uint64) {
	c.stopTimer()
	c.timer = c.clock.AfterFunc(c.delay, func() {
		c.post(func() { c.onTimer(gen) })
	})
}

func (c *Controller[T]) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller[T]) onTimer(gen uint64) {
	if !c.debouncer.Due(gen) {
		return
	}
	c.timer = nil
	if c.inFlight {
		// Dispatched once the in-flight attempt settles.
		c.flushAfterSettle = true
		return
	}
	value, _ := c.debouncer.Take()
	c.dispatch(value)
}

func (c *Controller[T]) dispatch(value T) {
	enc, err := debounce.Encode(value)
	if err != nil {
		c.setState(StatusError, encodeError(err))
		return
	}
	if debounce.Equal(enc, c.lastSavedEnc) {
		c.settleUnchanged()
		return
	}
	if !c.online {
		c.storeOffline(value)
		return
	}

	// Written before the call so an abandoned session can still be recovered.
	c.writeBackup(value)
	c.inFlight = true
	c.setState(StatusSaving, nil)
	c.logger.Debug("autosave: saving")

	go func() {
		err := c.save(c.ctx, value)
		c.post(func() { c.onSettled(value, enc, err) })
	}()
}

func (c *Controller[T]) onSettled(value T, enc []byte, err error) {
	c.inFlight = false

	switch kind := Classify(err); kind {
	case KindNone:
		now := c.clock.Now()
		c.lastSavedEnc = enc
		c.lastSavedAt = &now
		c.refusedEnc = nil
		c.hasRejected = false
		c.removeBackupIf(enc, "autosave: clear backup after save")
		if _, pending := c.backup.Mirror(); pending && !c.online {
			c.setState(StatusOffline, nil)
		} else {
			c.setState(StatusSaved, nil)
		}
	case KindConflict:
		c.conflicted = true
		c.conflictErr = err
		c.rejected, c.hasRejected = value, true
		c.logger.Info("autosave: save rejected by version conflict", "error", err)
		c.setState(StatusError, err)
	case KindValidation:
		// Nothing was written server-side and resubmitting would be rejected
		// the same way.
		c.removeBackupIf(enc, "autosave: clear rejected backup")
		c.logger.Info("autosave: save rejected by validation", "error", err)
		c.setState(StatusError, err)
	case KindRefused:
		// The text stays recoverable, but reconnecting does not send it again.
		if _, ok := c.backup.Load(c.ctx); !ok {
			c.writeBackup(value)
		}
		c.refusedEnc = enc
		c.logger.Warn("autosave: save refused", "error", err)
		c.setState(StatusError, err)
	default:
		if _, ok := c.backup.Load(c.ctx); !ok {
			c.writeBackup(value)
		}
		c.logger.Warn("autosave: save failed", "error", err)
		if c.online {
			c.setState(StatusError, err)
		} else {
			c.setState(StatusOffline, nil)
		}
	}

	if c.conflicted {
		c.flushAfterSettle = false
		c.reconnectPending = false
		if next, ok := c.debouncer.Take(); ok {
			c.rejected = next
			c.writeBackup(next)
		}
		return
	}
	if c.flushAfterSettle {
		c.flushAfterSettle = false
		if next, ok := c.debouncer.Take(); ok {
			c.reconnectPending = false
			c.dispatch(next)
			return
		}
	}
	if c.reconnectPending {
		c.reconnectPending = false
		c.flushBackup()
	}
}

func (c *Controller[T]) onConnectivity() {
	online := c.signal.Online()
	if c.online == online {
		return
	}
	c.online = online

	if !online {
		c.reconnectPending = false
		c.stopTimer()
		if value, ok := c.debouncer.Take(); ok {
			c.flushAfterSettle = false
			c.storeOffline(value)
			return
		}
		if c.inFlight {
			c.setState(StatusOffline, nil)
			return
		}
		c.republish()
		return
	}

	if c.inFlight {
		c.reconnectPending = true
		c.republish()
		return
	}
	if c.State().Status == StatusOffline {
		c.setState(StatusIdle, nil)
	} else {
		c.republish()
	}
	c.flushBackup()
}

// flushBackup resubmits the backup once. It is the only automatic retry.
func (c *Controller[T]) flushBackup() {
	if c.conflicted {
		c.logger.Info("autosave: reconnect flush skipped, conflict unresolved")
		return
	}
	value, ok := c.backup.Load(c.ctx)
	if !ok {
		return
	}
	if c.refusedEnc != nil {
		if enc, err := debounce.Encode(value); err == nil && debounce.Equal(enc, c.refusedEnc) {
			c.logger.Info("autosave: reconnect flush skipped, backup was refused")
			return
		}
	}
	c.logger.Info("autosave: replaying backup after reconnect")
	c.dispatch(value)
}

func (c *Controller[T]) storeOffline(value T) {
	c.writeBackup(value)
	c.setState(StatusOffline, nil)
}

func (c *Controller[T]) writeBackup(value T) {
	if err := c.backup.Set(c.ctx, value); err != nil {
		c.logger.Warn("autosave: write backup", "error", err)
		return
	}
	// Written after the backup: a crash in between leaves an older base,
	// which can only make the replay conflict.
	if c.base != nil {
		if err := c.base.Set(c.ctx, c.version()); err != nil {
			c.logger.Warn("autosave: write backup base", "error", err)
		}
	}
}

func (c *Controller[T]) removeBackupIf(enc []byte, msg string) {
	removed, err := c.backup.RemoveIf(c.ctx, enc)
	if err != nil {
		c.logger.Warn(msg, "error", err)
		return
	}
	if removed {
		c.dropBase()
	}
}

func (c *Controller[T]) dropBase() {
	if c.base == nil {
		return
	}
	if err := c.base.Remove(c.ctx); err != nil {
		c.logger.Warn("autosave: remove backup base", "error", err)
	}
}

// settleUnchanged handles a draft equal to the last saved value. A backup
// holding anything else is stale relative to the draft and is dropped.
func (c *Controller[T]) settleUnchanged() {
	if _, ok := c.backup.Mirror(); ok {
		if err := c.backup.Remove(c.ctx); err != nil {
			c.logger.Warn("autosave: remove stale backup", "error", err)
		} else {
			c.dropBase()
		}
	}
	c.setState(StatusSaved, nil)
}

func (c *Controller[T]) republish() {
	current := c.State()
	c.publish(current)
}

func (c *Controller[T]) setState(status Status, err error) {
	c.publish(State{
		Status:    status,
		LastSaved: c.lastSavedAt,
		Err:       err,
		Kind:      Classify(err),
	})
}

func (c *Controller[T]) publish(next State) {
	next.Offline = !c.online
	if next.LastSaved != nil {
		at := *next.LastSaved
		next.LastSaved = &at
	}

	c.mu.Lock()
	c.state = next
	fns := make([]func(State), 0, len(c.watchers))
	for _, fn := range c.watchers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
}

func encodeError(err error) error {
	return &record.ValidationError{Field: "draft", Reason: err.Error()}
}
