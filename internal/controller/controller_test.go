package controller_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-smartctl/internal/controller"
	"github.com/nerrad567/gray-logic-smartctl/internal/controller/controllertest"
	"github.com/nerrad567/gray-logic-smartctl/internal/entity"
)

// ─── Mock Dependencies ─────────────────────────────────────────────

// spy is an automaton that records every callback in order.
type spy struct {
	log     []string
	failOn  string
	onEvent func(c *controller.Controller, ev controller.Event)
	onStart func(c *controller.Controller)
	polls   int
	stopped bool
}

func (p *spy) OnStateChange(c *controller.Controller, s entity.State) error {
	p.log = append(p.log, "change:"+s.EntityID+"="+s.Value)
	if s.EntityID == p.failOn {
		c.Enqueue("SHOULD_BE_DROPPED")
		return errors.New("bad reading")
	}
	c.Enqueue(controller.Event("E:" + s.EntityID))
	return nil
}

func (p *spy) OnTimerExpired(*controller.Controller) {
	p.log = append(p.log, "timer")
}

func (p *spy) OnEvent(c *controller.Controller, ev controller.Event) {
	p.log = append(p.log, "event:"+string(ev))
	if p.onEvent != nil {
		p.onEvent(c, ev)
	}
}

func (p *spy) OnStarted(c *controller.Controller) {
	p.log = append(p.log, "started")
	if p.onStart != nil {
		p.onStart(c)
	}
}

func (p *spy) OnPoll(*controller.Controller) {
	p.polls++
	p.log = append(p.log, "poll")
}

func (p *spy) OnStopped(*controller.Controller) { p.stopped = true }

type logEntry struct {
	level string
	msg   string
}

type mockLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *mockLogger) add(level, msg string) {
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{level, msg})
	l.mu.Unlock()
}

func (l *mockLogger) Debug(msg string, _ ...any) { l.add("debug", msg) }
func (l *mockLogger) Info(msg string, _ ...any)  { l.add("info", msg) }
func (l *mockLogger) Warn(msg string, _ ...any)  { l.add("warn", msg) }
func (l *mockLogger) Error(msg string, _ ...any) { l.add("error", msg) }

func (l *mockLogger) count(level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			n++
		}
	}
	return n
}

type mockMetrics struct {
	mu          sync.Mutex
	transitions int
	commands    int
	failed      int
	ignored     int
	skipped     int
	values      map[string]float64
}

func (m *mockMetrics) Transition(string, string, controller.State, controller.State) {
	m.mu.Lock()
	m.transitions++
	m.mu.Unlock()
}

func (m *mockMetrics) Command(_, _ string, err error) {
	m.mu.Lock()
	m.commands++
	if err != nil {
		m.failed++
	}
	m.mu.Unlock()
}

func (m *mockMetrics) EventIgnored(string, controller.State, controller.Event) {
	m.mu.Lock()
	m.ignored++
	m.mu.Unlock()
}

func (m *mockMetrics) UpdateSkipped(string) {
	m.mu.Lock()
	m.skipped++
	m.mu.Unlock()
}

func (m *mockMetrics) Value(_, name string, v float64) {
	m.mu.Lock()
	if m.values == nil {
		m.values = map[string]float64{}
	}
	m.values[name] = v
	m.mu.Unlock()
}

// ─── Fixture ───────────────────────────────────────────────────────

type fixture struct {
	store   *entity.Store
	caller  *controllertest.Caller
	clock   *controllertest.Clock
	logger  *mockLogger
	metrics *mockMetrics
	spy     *spy
	ctl     *controller.Controller
}

func newFixture(t *testing.T, tracked ...string) *fixture {
	t.Helper()
	f := &fixture{
		store:   entity.NewStore(),
		clock:   controllertest.NewClock(),
		logger:  &mockLogger{},
		metrics: &mockMetrics{},
		spy:     &spy{},
	}
	f.caller = controllertest.NewCaller(f.store)
	if len(tracked) == 0 {
		tracked = []string{"light.hall", "sensor.lux", "binary_sensor.motion"}
	}
	f.ctl = controller.New(controller.Config{
		ID:         "hall",
		Type:       "test",
		Controlled: "light.hall",
		Tracked:    tracked,
	}, f.spy, controllertest.Host(f.store, f.caller),
		controller.WithLogger(f.logger),
		controller.WithScheduler(f.clock),
		controller.WithMetrics(f.metrics),
		controller.WithInitialState("INIT"),
	)
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	controllertest.Start(t, f.ctl)
	f.spy.log = f.spy.log[:0:0]
}

func (f *fixture) set(t *testing.T, id, value string) {
	t.Helper()
	controllertest.Set(t, f.store, id, value, nil)
	controllertest.Settle(t, f.ctl)
}

func equalLog(t *testing.T, got, want []string) {
	t.Helper()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("log = %v\nwant  %v", got, want)
	}
}

// ─── Setup ─────────────────────────────────────────────────────────

func TestStart_SyncsInOrderThenSettles(t *testing.T) {
	f := newFixture(t)
	controllertest.Set(t, f.store, "light.hall", "off", map[string]any{entity.AttrFriendlyName: "Hall Light"})
	controllertest.Set(t, f.store, "binary_sensor.motion", "on", nil)

	controllertest.Start(t, f.ctl)

	equalLog(t, f.spy.log, []string{
		"change:light.hall=off",
		"change:binary_sensor.motion=on",
		"event:E:light.hall",
		"event:E:binary_sensor.motion",
		"started",
	})
	if got := f.logger.count("warn", "referenced input missing"); got != 1 {
		t.Errorf("missing input warnings = %d, want 1", got)
	}
	if f.ctl.Name() != "Hall Light" {
		t.Errorf("Name() = %q, want friendly name of controlled entity", f.ctl.Name())
	}
}

func TestStart_SkipsUnavailableInputs(t *testing.T) {
	f := newFixture(t)
	controllertest.Set(t, f.store, "sensor.lux", entity.StateUnavailable, nil)

	controllertest.Start(t, f.ctl)

	equalLog(t, f.spy.log, []string{"started"})
	if _, ok := f.ctl.Input("sensor.lux"); ok {
		t.Error("unavailable reading should not be cached")
	}
}

func TestStart_Twice(t *testing.T) {
	f := newFixture(t)
	controllertest.Start(t, f.ctl)

	if err := f.ctl.Start(context.Background()); !errors.Is(err, controller.ErrAlreadyStarted) {
		t.Errorf("second Start() = %v, want ErrAlreadyStarted", err)
	}
}

func TestStart_AfterStop(t *testing.T) {
	f := newFixture(t)
	f.ctl.Stop()

	if err := f.ctl.Start(context.Background()); !errors.Is(err, controller.ErrStopped) {
		t.Errorf("Start() after Stop = %v, want ErrStopped", err)
	}
}

func TestStart_OnStartedEventsAreDrained(t *testing.T) {
	f := newFixture(t)
	f.spy.onStart = func(c *controller.Controller) { c.Enqueue("REFRESH") }

	controllertest.Start(t, f.ctl)

	equalLog(t, f.spy.log, []string{"started", "event:REFRESH"})
}

// ─── Input handling ────────────────────────────────────────────────

func TestInput_DeliveredAndDrained(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.set(t, "sensor.lux", "40")

	equalLog(t, f.spy.log, []string{"change:sensor.lux=40", "event:E:sensor.lux"})
	if st, ok := f.ctl.Input("sensor.lux"); !ok || st.Value != "40" {
		t.Errorf("Input(sensor.lux) = %+v, %v", st, ok)
	}
}

func TestInput_SameValueIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.set(t, "sensor.lux", "40")
	f.set(t, "sensor.lux", "40")
	controllertest.Set(t, f.store, "sensor.lux", "40", map[string]any{"battery": 90})
	controllertest.Settle(t, f.ctl)

	equalLog(t, f.spy.log, []string{"change:sensor.lux=40", "event:E:sensor.lux"})
	if st, _ := f.ctl.Input("sensor.lux"); st.AttrFloat("battery", 0) != 90 {
		t.Error("attributes of a repeated value should still refresh the snapshot")
	}
}

func TestInput_UnavailableKeepsCachedValue(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.set(t, "sensor.lux", "40")
	f.set(t, "sensor.lux", entity.StateUnavailable)
	f.set(t, "sensor.lux", entity.StateUnknown)

	if st, _ := f.ctl.Input("sensor.lux"); st.Value != "40" {
		t.Errorf("cached value = %q, want 40", st.Value)
	}
	if len(f.spy.log) != 2 {
		t.Errorf("log = %v, want only the first change", f.spy.log)
	}
}

func TestInput_ReturnFromUnavailableIsDelivered(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.set(t, "binary_sensor.motion", "on")
	f.set(t, "binary_sensor.motion", entity.StateUnavailable)
	f.set(t, "binary_sensor.motion", "on")

	equalLog(t, f.spy.log, []string{
		"change:binary_sensor.motion=on", "event:E:binary_sensor.motion",
		"change:binary_sensor.motion=on", "event:E:binary_sensor.motion",
	})
}

func TestInput_FirstReportMatchingSnapshotIsIgnored(t *testing.T) {
	f := newFixture(t)
	controllertest.Set(t, f.store, "sensor.lux", "40", nil)
	f.start(t)

	// The entity vanishes from the host and reports again with the value
	// the controller already holds.
	f.store.Remove("sensor.lux")
	f.set(t, "sensor.lux", "40")

	if len(f.spy.log) != 0 {
		t.Errorf("log = %v, want no delivery", f.spy.log)
	}
}

func TestInput_HandlerErrorSkipsUpdate(t *testing.T) {
	f := newFixture(t)
	controllertest.Set(t, f.store, "sensor.lux", "10", nil)
	f.start(t)

	f.spy.failOn = "sensor.lux"
	f.set(t, "sensor.lux", "garbage")

	equalLog(t, f.spy.log, []string{"change:sensor.lux=garbage"})
	if st, _ := f.ctl.Input("sensor.lux"); st.Value != "10" {
		t.Errorf("snapshot = %q, want previous value restored", st.Value)
	}
	if f.logger.count("warn", "skipping update") != 1 || f.metrics.skipped != 1 {
		t.Error("skipped update should be logged and counted")
	}
}

func TestInput_SelfEchoIsFiltered(t *testing.T) {
	f := newFixture(t)
	controllertest.Set(t, f.store, "light.hall", "off", nil)
	f.spy.onEvent = func(c *controller.Controller, ev controller.Event) {
		if ev == "E:binary_sensor.motion" {
			if err := c.Call("turn_on", nil); err != nil {
				t.Errorf("Call() error = %v", err)
			}
		}
	}
	f.start(t)

	f.set(t, "binary_sensor.motion", "on")
	controllertest.Settle(t, f.ctl)

	equalLog(t, f.spy.log, []string{"change:binary_sensor.motion=on", "event:E:binary_sensor.motion"})
	cmds := f.caller.Commands()
	if len(cmds) != 1 || cmds[0].Context != f.ctl.Tag() || cmds[0].Domain != "light" {
		t.Fatalf("commands = %+v", cmds)
	}
	if st, _ := f.ctl.Input("light.hall"); st.Value != entity.StateOn {
		t.Errorf("echo should refresh snapshot, got %q", st.Value)
	}

	// A real external change is still delivered.
	f.set(t, "light.hall", "off")
	if got := f.spy.log[len(f.spy.log)-2]; got != "change:light.hall=off" {
		t.Errorf("external change not delivered, log = %v", f.spy.log)
	}
}

// ─── Timers and polling ────────────────────────────────────────────

func TestSetTimer_ReplaceAndCancel(t *testing.T) {
	f := newFixture(t)
	f.spy.onEvent = func(c *controller.Controller, ev controller.Event) {
		switch ev {
		case "E:sensor.lux":
			c.SetTimer(10 * time.Minute)
		case "E:binary_sensor.motion":
			c.SetTimer(2 * time.Minute)
		case "E:light.hall":
			c.SetTimer(0)
		}
	}
	f.start(t)

	f.set(t, "sensor.lux", "1")
	f.set(t, "binary_sensor.motion", "on")
	if f.clock.Pending() != 1 {
		t.Fatalf("pending timers = %d, want 1", f.clock.Pending())
	}
	deadline, ok := f.ctl.Deadline()
	if !ok || !deadline.Equal(f.clock.Now().Add(2*time.Minute)) {
		t.Errorf("Deadline() = %v, %v", deadline, ok)
	}

	f.clock.Advance(2 * time.Minute)
	controllertest.Settle(t, f.ctl)
	if last := f.spy.log[len(f.spy.log)-1]; last != "timer" {
		t.Errorf("log = %v, want timer last", f.spy.log)
	}
	if _, ok := f.ctl.Deadline(); ok {
		t.Error("Deadline() should clear after firing")
	}

	f.clock.Advance(10 * time.Minute)
	controllertest.Settle(t, f.ctl)
	timers := 0
	for _, e := range f.spy.log {
		if e == "timer" {
			timers++
		}
	}
	if timers != 1 {
		t.Errorf("timer fired %d times, want 1 (replaced timer must not fire)", timers)
	}

	f.set(t, "sensor.lux", "2")
	f.set(t, "light.hall", "on")
	f.clock.Advance(time.Hour)
	controllertest.Settle(t, f.ctl)
	if f.spy.log[len(f.spy.log)-1] == "timer" {
		t.Error("cancelled timer fired")
	}
}

func TestPoll_Rearms(t *testing.T) {
	f := newFixture(t)
	f.spy.onStart = func(c *controller.Controller) { c.Poll(time.Minute) }
	f.start(t)

	for i := 0; i < 3; i++ {
		f.clock.Advance(time.Minute)
		controllertest.Settle(t, f.ctl)
	}
	if f.spy.polls != 3 {
		t.Errorf("polls = %d, want 3", f.spy.polls)
	}
}

// ─── State and listeners ───────────────────────────────────────────

func TestSetState_NotifiesListeners(t *testing.T) {
	f := newFixture(t)
	f.spy.onEvent = func(c *controller.Controller, ev controller.Event) {
		switch ev {
		case "E:sensor.lux":
			c.SetState("ON")
			c.SetState("ON")
		case "E:binary_sensor.motion":
			c.SetState("OFF")
		}
	}
	var rec controllertest.Recorder
	rec.Listen(f.ctl)
	var removed []controller.Transition
	remove := f.ctl.AddListener(func(tr controller.Transition) { removed = append(removed, tr) })
	f.start(t)

	f.set(t, "sensor.lux", "1")
	remove()
	f.set(t, "binary_sensor.motion", "on")

	trs := rec.Transitions()
	if len(trs) != 2 {
		t.Fatalf("transitions = %+v, want 2", trs)
	}
	if trs[0].From != "INIT" || trs[0].To != "ON" || !trs[0].IsOn || trs[0].ControllerID != "hall" {
		t.Errorf("first transition = %+v", trs[0])
	}
	if trs[1].IsOn || f.ctl.IsOn() {
		t.Error("OFF should not be on")
	}
	if len(removed) != 1 {
		t.Errorf("removed listener saw %d transitions, want 1", len(removed))
	}
	if f.metrics.transitions != 2 {
		t.Errorf("metrics transitions = %d, want 2", f.metrics.transitions)
	}
}

// ─── Commands ──────────────────────────────────────────────────────

func TestCall_Failure(t *testing.T) {
	f := newFixture(t)
	f.caller.Err = errors.New("broker down")
	var callErr error
	f.spy.onEvent = func(c *controller.Controller, ev controller.Event) {
		if ev == "E:sensor.lux" {
			callErr = c.Call("turn_off", nil)
		}
	}
	f.start(t)

	f.set(t, "sensor.lux", "1")

	if !errors.Is(callErr, controller.ErrCommandFailed) {
		t.Errorf("Call() error = %v, want ErrCommandFailed", callErr)
	}
	if len(f.caller.Commands()) != 1 {
		t.Error("failed command must not be retried")
	}
	if f.metrics.failed != 1 {
		t.Errorf("failed commands = %d, want 1", f.metrics.failed)
	}
}

func TestCall_NoControlledEntity(t *testing.T) {
	store := entity.NewStore()
	var callErr error
	p := &spy{onStart: func(c *controller.Controller) { callErr = c.Call("turn_on", nil) }}
	c := controller.New(controller.Config{ID: "zone"}, p, controllertest.Host(store, controllertest.NewCaller(store)))
	controllertest.Start(t, c)

	if !errors.Is(callErr, controller.ErrNoControlledEntity) {
		t.Errorf("Call() = %v, want ErrNoControlledEntity", callErr)
	}
}

func TestIgnoreAndRecord(t *testing.T) {
	f := newFixture(t)
	f.spy.onEvent = func(c *controller.Controller, ev controller.Event) {
		c.Ignore(ev)
		c.Record("comfort_index", 86.5)
	}
	f.start(t)

	f.set(t, "sensor.lux", "1")

	if f.metrics.ignored != 1 || f.metrics.values["comfort_index"] != 86.5 {
		t.Errorf("metrics = %+v", f.metrics)
	}
	if f.logger.count("debug", "ignored event") != 1 {
		t.Error("ignored event should be logged at debug")
	}
}

// ─── Failure and shutdown ──────────────────────────────────────────

func TestAssert_HaltsController(t *testing.T) {
	f := newFixture(t)
	f.spy.onEvent = func(c *controller.Controller, ev controller.Event) {
		c.Assert(ev != "E:sensor.lux", "lux must not change")
	}
	f.start(t)

	controllertest.Set(t, f.store, "sensor.lux", "1", nil)
	if err := f.ctl.Wait(context.Background()); !errors.Is(err, controller.ErrStopped) {
		t.Errorf("Wait() = %v, want ErrStopped", err)
	}

	var ie *controller.InvariantError
	if !errors.As(f.ctl.Err(), &ie) || ie.ControllerID != "hall" {
		t.Errorf("Err() = %v, want InvariantError", f.ctl.Err())
	}
	if f.logger.count("error", "controller halted") != 1 {
		t.Error("halt should be logged at error level")
	}
	if f.store.SubscriberCount("sensor.lux") != 0 {
		t.Error("halted controller should unsubscribe")
	}
	if !f.spy.stopped {
		t.Error("OnStopped should run on halt")
	}
}

func TestStop_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.spy.onStart = func(c *controller.Controller) { c.SetTimer(time.Minute) }
	f.start(t)

	f.ctl.Stop()
	f.ctl.Stop()

	if f.clock.Pending() != 0 {
		t.Error("Stop should cancel the timer")
	}
	if f.store.SubscriberCount("light.hall") != 0 {
		t.Error("Stop should unsubscribe")
	}
	if err := f.ctl.Wait(context.Background()); !errors.Is(err, controller.ErrStopped) {
		t.Errorf("Wait() after Stop = %v, want ErrStopped", err)
	}
}

// ─── Requirements ──────────────────────────────────────────────────

func TestRequirements(t *testing.T) {
	r := controller.NewRequirements(
		[]string{"input_boolean.home", "binary_sensor.motion"},
		[]string{"input_boolean.guest", "binary_sensor.motion"},
	)
	if got := fmt.Sprint(r.IDs()); got != "[input_boolean.home binary_sensor.motion input_boolean.guest]" {
		t.Errorf("IDs() = %s", got)
	}
	if !r.Has("input_boolean.guest") || r.Has("sensor.lux") {
		t.Error("Has() mismatch")
	}

	f := newFixture(t, "input_boolean.home", "binary_sensor.motion", "input_boolean.guest")
	f.start(t)

	var met []bool
	f.spy.onEvent = func(c *controller.Controller, _ controller.Event) { met = append(met, r.Met(c)) }

	f.set(t, "input_boolean.home", "on")
	f.set(t, "binary_sensor.motion", "off")
	f.set(t, "input_boolean.guest", "off")
	f.set(t, "input_boolean.home", "off")

	if got := fmt.Sprint(met); got != "[false false true false]" {
		t.Errorf("Met() sequence = %s", got)
	}
	if !controller.NewRequirements(nil, nil).Met(f.ctl) {
		t.Error("empty requirements should be met")
	}
}
