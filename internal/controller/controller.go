package controller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-smartctl/internal/entity"
)

// Config identifies a controller and the entities it works with.
type Config struct {
	ID   string
	Type string

	// Name is the display name. When empty it is resolved from the
	// controlled entity's friendly name on first sync.
	Name string

	// Controlled is the actuator commanded by Call. Empty for pure
	// detectors such as occupancy.
	Controlled string

	// Tracked lists the inputs in the order they are synced at setup.
	Tracked []string
}

// Host bundles the platform services a controller depends on.
type Host struct {
	Reader     entity.Reader
	Subscriber entity.Subscriber
	Caller     entity.Caller
}

// Transition is delivered to listeners after every state change.
type Transition struct {
	ControllerID   string
	ControllerType string
	From           State
	To             State
	IsOn           bool
	At             time.Time
}

// Listener observes state changes. Listeners run on the controller's
// goroutine and must return quickly.
type Listener func(Transition)

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithScheduler replaces the wall clock, mainly for tests.
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) {
		if s != nil {
			c.sched = s
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(c *Controller) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithInitialState sets the state the automaton starts in.
func WithInitialState(s State) Option {
	return func(c *Controller) { c.state = s }
}

// message kinds delivered through the mailbox.
type (
	inputChanged struct{ change entity.Change }
	timerFired   struct{ gen uint64 }
	pollFired    struct{ gen uint64 }
	barrier      struct{ done chan struct{} }
)

// Controller runs one Automaton.
//
// Thread Safety:
//   - Start, Stop, Wait and the read-only observers (State, IsOn, Name,
//     Input, Inputs, Deadline, Err) are safe from any goroutine.
//   - Enqueue, SetTimer, Poll, SetState, Call, Record, Ignore and Assert
//     must only be called from automaton callbacks.
type Controller struct {
	cfg       Config
	automaton Automaton
	host      Host
	logger    Logger
	sched     Scheduler
	metrics   Metrics
	tag       string

	// Owned by the loop goroutine.
	queue     []Event
	timer     Timer
	timerGen  uint64
	poll      Timer
	pollGen   uint64
	pollEvery time.Duration

	mu        sync.RWMutex
	state     State
	name      string
	snapshot  map[string]entity.State
	deadline  time.Time
	listeners []listenerEntry
	nextID    uint64
	err       error

	box         *mailbox
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	launched    atomic.Bool
	stopOnce    sync.Once
	quit        chan struct{}
	done        chan struct{}
}

type listenerEntry struct {
	id uint64
	fn Listener
}

// New creates a controller. It does nothing until Start is called.
func New(cfg Config, a Automaton, host Host, opts ...Option) *Controller {
	c := &Controller{
		cfg:       cfg,
		automaton: a,
		host:      host,
		logger:    noopLogger{},
		sched:     WallClock,
		metrics:   noopMetrics{},
		tag:       uuid.NewString(),
		name:      cfg.Name,
		snapshot:  make(map[string]entity.State, len(cfg.Tracked)),
		box:       newMailbox(),
		ctx:       context.Background(),
		cancel:    func() {},
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start subscribes to the tracked entities, syncs their current values,
// settles the event queue and begins processing live changes.
//
// Changes arriving while setup runs are buffered and handled afterwards.
func (c *Controller) Start(ctx context.Context) error {
	if !c.launched.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	select {
	case <-c.quit:
		close(c.done)
		return ErrStopped
	default:
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.unsubscribe = c.host.Subscriber.Subscribe(c.cfg.Tracked, func(ch entity.Change) {
		c.box.post(inputChanged{change: ch})
	})

	ready := make(chan error, 1)
	go c.run(ready)

	select {
	case err := <-ready:
		return err
	case <-ctx.Done():
		c.Stop()
		return ctx.Err()
	}
}

// Stop cancels the timer and poll, unsubscribes and waits for the loop to
// exit. It is safe to call more than once.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() { close(c.quit) })
	if c.launched.Load() {
		<-c.done
	}
}

// Wait blocks until every message posted before the call has been handled.
func (c *Controller) Wait(ctx context.Context) error {
	b := barrier{done: make(chan struct{})}
	if !c.box.post(b) {
		return ErrStopped
	}
	select {
	case <-b.done:
		return nil
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) run(ready chan<- error) {
	defer close(c.done)
	defer c.shutdown()

	if err := c.protect(c.setup); err != nil {
		c.halt(err)
		ready <- err
		return
	}
	ready <- nil

	for {
		select {
		case <-c.quit:
			return
		case <-c.box.ready:
		}

		for _, msg := range c.box.take() {
			select {
			case <-c.quit:
				return
			default:
			}
			if err := c.protect(func() { c.handle(msg) }); err != nil {
				c.halt(err)
				return
			}
		}
	}
}

func (c *Controller) setup() {
	for _, id := range c.cfg.Tracked {
		st, ok := c.host.Reader.Get(id)
		if !ok {
			c.logger.Warn("referenced input missing", "controller", c.cfg.ID, "entity_id", id)
			continue
		}
		if id == c.cfg.Controlled {
			c.resolveName(st)
		}
		if !st.Available() {
			c.logger.Debug("input unavailable at setup", "controller", c.cfg.ID, "entity_id", id, "value", st.Value)
			continue
		}
		c.accept(st)
	}

	c.drain()

	if s, ok := c.automaton.(Starter); ok {
		s.OnStarted(c)
		c.drain()
	}

	c.logger.Info("controller started",
		"controller", c.cfg.ID,
		"type", c.cfg.Type,
		"name", c.Name(),
		"state", c.State(),
		"tracked", len(c.cfg.Tracked),
	)
}

func (c *Controller) shutdown() {
	c.box.close()

	c.timerGen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.pollGen++
	if c.poll != nil {
		c.poll.Stop()
		c.poll = nil
	}
	if c.unsubscribe != nil {
		c.unsubscribe()
	}

	if s, ok := c.automaton.(Stopper); ok {
		if err := c.protect(func() { s.OnStopped(c) }); err != nil {
			c.logger.Error("stop hook failed", "controller", c.cfg.ID, "error", err)
		}
	}
	c.cancel()

	c.logger.Info("controller stopped", "controller", c.cfg.ID, "state", c.State())
}

// protect runs fn and converts a panic into an error.
func (c *Controller) protect(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if ie, ok := r.(*InvariantError); ok {
				err = ie
				return
			}
			err = fmt.Errorf("controller %s: handler panicked: %v", c.cfg.ID, r)
		}
	}()
	fn()
	return nil
}

func (c *Controller) halt(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	c.logger.Error("controller halted", "controller", c.cfg.ID, "state", c.State(), "error", err)
}

func (c *Controller) handle(msg any) {
	switch m := msg.(type) {
	case inputChanged:
		c.handleInput(m.change)

	case timerFired:
		if m.gen != c.timerGen || c.timer == nil {
			return
		}
		c.timer = nil
		c.setDeadline(time.Time{})
		c.logger.Debug("timer expired", "controller", c.cfg.ID, "state", c.State())
		c.automaton.OnTimerExpired(c)
		c.drain()

	case pollFired:
		if m.gen != c.pollGen || c.poll == nil {
			return
		}
		c.armPoll()
		if p, ok := c.automaton.(Poller); ok {
			p.OnPoll(c)
			c.drain()
		}

	case barrier:
		close(m.done)
	}
}

func (c *Controller) handleInput(ch entity.Change) {
	st := ch.New
	if st == nil || !st.Available() {
		return
	}

	if st.Context != "" && st.Context == c.tag {
		c.setInput(*st)
		c.logger.Debug("ignoring own command echo", "controller", c.cfg.ID, "entity_id", st.EntityID)
		return
	}

	// Only a change whose previous value is unknown falls back to the
	// snapshot. An unavailable reading never reaches the snapshot, so
	// on → unavailable → on must still be delivered.
	prev, had := c.Input(st.EntityID)
	if (ch.Old != nil && ch.Old.Value == st.Value) || (ch.Old == nil && had && prev.Value == st.Value) {
		c.setInput(*st)
		return
	}

	c.logger.Debug("input changed",
		"controller", c.cfg.ID,
		"state", c.State(),
		"entity_id", st.EntityID,
		"from", prev.Value,
		"to", st.Value,
	)

	c.accept(*st)
	c.drain()
}

// accept records st in the snapshot and hands it to the automaton. A
// rejected update restores the previous snapshot entry and drops any
// events it queued.
func (c *Controller) accept(st entity.State) {
	prev, had := c.Input(st.EntityID)
	mark := len(c.queue)

	c.setInput(st)
	if err := c.automaton.OnStateChange(c, st); err != nil {
		c.queue = c.queue[:mark]

		c.mu.Lock()
		if had {
			c.snapshot[st.EntityID] = prev
		} else {
			delete(c.snapshot, st.EntityID)
		}
		c.mu.Unlock()

		c.logger.Warn("skipping update",
			"controller", c.cfg.ID,
			"entity_id", st.EntityID,
			"value", st.Value,
			"error", err,
		)
		c.metrics.UpdateSkipped(c.cfg.ID)
	}
}

func (c *Controller) drain() {
	for len(c.queue) > 0 {
		ev := c.queue[0]
		c.queue = c.queue[1:]

		c.logger.Debug("processing event", "controller", c.cfg.ID, "state", c.State(), "event", ev)
		c.automaton.OnEvent(c, ev)
	}
	c.queue = nil
}

func (c *Controller) resolveName(st entity.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.name == "" {
		c.name = st.Name()
	}
}

func (c *Controller) setInput(st entity.State) {
	c.mu.Lock()
	c.snapshot[st.EntityID] = st
	c.mu.Unlock()
}

func (c *Controller) setDeadline(t time.Time) {
	c.mu.Lock()
	c.deadline = t
	c.mu.Unlock()
}

func (c *Controller) armPoll() {
	gen := c.pollGen
	c.poll = c.sched.AfterFunc(c.pollEvery, func() {
		c.box.post(pollFired{gen: gen})
	})
}
