// Package controller is the runtime shared by every smart controller.
//
// A Controller owns one Automaton, the snapshot of the entities it tracks,
// a FIFO of pending events, one deadline timer and an optional poll. All
// automaton callbacks run on a single goroutine per controller:
//
//	entity change ──┐
//	timer fired  ───┼──▶ mailbox ──▶ loop ──▶ OnStateChange / OnTimerExpired / OnPoll
//	poll fired   ───┘                  │
//	                                   └──▶ drain queue ──▶ OnEvent (oldest first)
//
// Every message is handled to completion, including draining the events it
// enqueued, before the next one is taken from the mailbox. Automatons
// therefore never need locks.
//
// Automatons describe their transitions with a Machine: guards, entry and
// exit actions and dynamic destinations over the controller's own state.
// A destination that issues a command can return Stay when it fails.
//
// Commands sent through Call carry a per-controller context tag. When the
// resulting state change comes back on the feed the controller recognises
// its own tag and refreshes its snapshot without running any handler.
//
// # Usage
//
//	c := controller.New(controller.Config{
//	    ID:         "hall-light",
//	    Type:       "light",
//	    Controlled: "light.hall",
//	    Tracked:    []string{"light.hall", "binary_sensor.hall_motion"},
//	}, automaton, controller.Host{Reader: store, Subscriber: store, Caller: caller},
//	    controller.WithLogger(logger.With("controller", "hall-light")),
//	)
//	if err := c.Start(ctx); err != nil {
//	    return err
//	}
//	defer c.Stop()
package controller
