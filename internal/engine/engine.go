package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-smartctl/internal/controller"
	"github.com/nerrad567/gray-logic-smartctl/internal/controller/occupancy"
	"github.com/nerrad567/gray-logic-smartctl/internal/entity"
	"github.com/nerrad567/gray-logic-smartctl/internal/history"
	"github.com/nerrad567/gray-logic-smartctl/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-smartctl/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-smartctl/internal/infrastructure/mqtt"
)

const (
	// historyWriteTimeout bounds one history insert.
	historyWriteTimeout = 2 * time.Second

	// historyQueueSize is how many transitions may wait for the history
	// writer. Transitions arriving while it is full are dropped.
	historyQueueSize = 256
)

// Publisher is the subset of the MQTT client used to publish controller
// state.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Telemetry is the subset of the InfluxDB client used for controller
// points.
type Telemetry interface {
	WriteControllerState(controllerID, controllerType, state string, isOn bool)
	WriteControllerValue(controllerID, name string, value float64)
}

// Applier receives entity states derived by controllers. *entity.Store
// satisfies it.
type Applier interface {
	Apply(st entity.State) error
}

// StateMessage is the retained payload on graylogic/controller/{id}/state.
type StateMessage struct {
	ControllerID string    `json:"controller_id"`
	State        string    `json:"state"`
	IsOn         bool      `json:"is_on"`
	Timestamp    time.Time `json:"timestamp"`
}

// Deps are the services the engine wires controllers to. Only Host and
// Logger are required.
type Deps struct {
	Host   controller.Host
	Logger *logging.Logger

	Metrics   controller.Metrics
	History   history.Repository
	Telemetry Telemetry
	Publisher Publisher
	QoS       byte

	// Entities, when set, receives each occupancy controller's presence
	// as binary_sensor.{id} so other controllers can require it.
	Entities Applier

	// Scheduler replaces the wall clock for every controller.
	Scheduler controller.Scheduler
}

// Engine runs every configured controller.
//
// Thread Safety:
//   - Start and Stop must not be called concurrently with each other.
//   - Controllers and Controller are safe from any goroutine.
type Engine struct {
	deps Deps
	now  func() time.Time

	historyEnabled bool
	retention      time.Duration
	pruneEvery     time.Duration
	historyQueue   chan controller.Transition
	historyDone    chan struct{}

	controllers []*controller.Controller
	startOrder  []*controller.Controller
	byID        map[string]*controller.Controller
	removers    []func()

	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds one controller per entry in cfg.Controllers. Nothing runs
// until Start.
//
// Returns:
//   - *Engine: Engine with every controller constructed
//   - error: ErrUnknownType (wrapped) when an entry cannot be built
func New(cfg *config.Config, deps Deps) (*Engine, error) {
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	e := &Engine{
		deps:           deps,
		now:            time.Now,
		byID:           make(map[string]*controller.Controller, len(cfg.Controllers)),
		historyEnabled: cfg.History.Enabled && deps.History != nil,
		retention:      cfg.HistoryRetention(),
		pruneEvery:     cfg.HistoryPruneInterval(),
	}

	unit := cfg.Unit()
	metrics := e.valueSink()

	for _, cc := range cfg.Controllers {
		def, err := Build(cc, unit)
		if err != nil {
			return nil, err
		}

		opts := []controller.Option{
			controller.WithLogger(deps.Logger),
			controller.WithMetrics(metrics),
			controller.WithInitialState(def.Initial),
		}
		if deps.Scheduler != nil {
			opts = append(opts, controller.WithScheduler(deps.Scheduler))
		}

		ctl := controller.New(def.Config, def.Automaton, deps.Host, opts...)
		e.controllers = append(e.controllers, ctl)
		e.byID[cc.ID] = ctl
	}

	// Occupancy zones start first so lights requiring their presence
	// entity find it during setup.
	for _, ctl := range e.controllers {
		if ctl.Type() == occupancy.Type {
			e.startOrder = append(e.startOrder, ctl)
		}
	}
	for _, ctl := range e.controllers {
		if ctl.Type() != occupancy.Type {
			e.startOrder = append(e.startOrder, ctl)
		}
	}

	return e, nil
}

// Controllers returns the controllers in configuration order.
func (e *Engine) Controllers() []*controller.Controller {
	return e.controllers
}

// Controller returns the controller with the given id.
func (e *Engine) Controller(id string) (*controller.Controller, bool) {
	ctl, ok := e.byID[id]
	return ctl, ok
}

// Start attaches listeners, starts every controller (occupancy zones
// first, then configuration order) and publishes each initial state. If a controller fails to start, the
// ones already running are stopped and the error is returned.
func (e *Engine) Start(ctx context.Context) error {
	if e.started {
		return ErrAlreadyStarted
	}
	e.started = true

	if e.historyEnabled {
		e.historyQueue = make(chan controller.Transition, historyQueueSize)
		e.historyDone = make(chan struct{})
		go e.historyWriter(e.historyQueue)
	}

	for _, ctl := range e.controllers {
		e.removers = append(e.removers, ctl.AddListener(e.onTransition))
	}

	for i, ctl := range e.startOrder {
		if err := ctl.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				e.startOrder[j].Stop()
			}
			e.removeListeners()
			e.stopHistory()
			return fmt.Errorf("starting controller %s: %w", ctl.ID(), err)
		}
		e.applyPresence(ctl.ID(), ctl.Type(), ctl.Name(), ctl.IsOn())
		e.publishState(StateMessage{
			ControllerID: ctl.ID(),
			State:        string(ctl.State()),
			IsOn:         ctl.IsOn(),
			Timestamp:    e.now().UTC(),
		})
	}

	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	if e.historyEnabled {
		e.wg.Add(1)
		go e.pruneLoop(loopCtx)
	}

	e.deps.Logger.Info("engine started", "controllers", len(e.controllers))
	return nil
}

// Stop stops the prune loop and every controller, in reverse order, then
// waits for queued history writes. Calling Stop on an engine that was
// never started is a no-op.
func (e *Engine) Stop() {
	if !e.started {
		return
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.wg.Wait()

	for i := len(e.startOrder) - 1; i >= 0; i-- {
		e.startOrder[i].Stop()
	}
	e.removeListeners()
	e.stopHistory()
	e.deps.Logger.Info("engine stopped")
}

func (e *Engine) removeListeners() {
	for _, remove := range e.removers {
		remove()
	}
	e.removers = nil
}

// onTransition runs on the controller goroutine for every state change.
// History is only queued here; the insert happens on the writer.
func (e *Engine) onTransition(tr controller.Transition) {
	if e.historyQueue != nil {
		select {
		case e.historyQueue <- tr:
		default:
			e.deps.Logger.Warn("history queue full, dropping transition",
				"controller", tr.ControllerID,
				"from", tr.From,
				"to", tr.To,
			)
		}
	}

	if ctl, ok := e.byID[tr.ControllerID]; ok {
		e.applyPresence(tr.ControllerID, tr.ControllerType, ctl.Name(), tr.IsOn)
	}

	if e.deps.Telemetry != nil {
		e.deps.Telemetry.WriteControllerState(tr.ControllerID, tr.ControllerType, string(tr.To), tr.IsOn)
	}

	at := tr.At
	if at.IsZero() {
		at = e.now()
	}
	e.publishState(StateMessage{
		ControllerID: tr.ControllerID,
		State:        string(tr.To),
		IsOn:         tr.IsOn,
		Timestamp:    at.UTC(),
	})
}

// historyWriter records queued transitions until queue is closed.
func (e *Engine) historyWriter(queue <-chan controller.Transition) {
	defer close(e.historyDone)

	for tr := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
		if err := e.deps.History.RecordTransition(ctx, tr); err != nil {
			e.deps.Logger.Error("recording transition failed",
				"controller", tr.ControllerID,
				"error", err,
			)
		}
		cancel()
	}
}

// stopHistory closes the history queue and waits for the writer to drain
// it. Controllers must already be stopped.
func (e *Engine) stopHistory() {
	if e.historyQueue == nil {
		return
	}
	close(e.historyQueue)
	<-e.historyDone
	e.historyQueue = nil
}

// publishState publishes msg retained so late subscribers see the latest
// state.
func (e *Engine) publishState(msg StateMessage) {
	if e.deps.Publisher == nil {
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		e.deps.Logger.Error("encoding controller state failed", "controller", msg.ControllerID, "error", err)
		return
	}

	topic := mqtt.Topics{}.ControllerState(msg.ControllerID)
	if err := e.deps.Publisher.Publish(topic, payload, e.deps.QoS, true); err != nil {
		e.deps.Logger.Warn("publishing controller state failed",
			"controller", msg.ControllerID,
			"topic", topic,
			"error", err,
		)
	}
}

// PresenceEntityID is the binary sensor carrying an occupancy controller's
// presence.
func PresenceEntityID(controllerID string) string {
	return "binary_sensor." + controllerID
}

// applyPresence mirrors an occupancy controller's is-on value into the
// entity store.
func (e *Engine) applyPresence(controllerID, controllerType, name string, isOn bool) {
	if e.deps.Entities == nil || controllerType != occupancy.Type {
		return
	}

	value := entity.StateOff
	if isOn {
		value = entity.StateOn
	}
	err := e.deps.Entities.Apply(entity.State{
		EntityID: PresenceEntityID(controllerID),
		Value:    value,
		Attributes: map[string]any{
			entity.AttrDeviceClass:  "occupancy",
			entity.AttrFriendlyName: name,
		},
		LastChanged: e.now(),
	})
	if err != nil {
		e.deps.Logger.Warn("applying presence entity failed", "controller", controllerID, "error", err)
	}
}
