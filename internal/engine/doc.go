// Package engine builds the configured controllers and runs them.
//
// The engine owns the wiring around each controller:
//
//   - construction of the automaton from its config.yaml entry
//   - a transition listener that appends to the SQLite history, writes a
//     point to InfluxDB and republishes the controller state retained on
//     graylogic/controller/{id}/state
//   - derived values (comfort index, humidity difference) forwarded to both
//     Prometheus and InfluxDB
//   - a background loop pruning history older than the retention period
//
// Lifecycle:
//
//	eng, err := engine.New(cfg, engine.Deps{Host: host, Logger: log})
//	if err := eng.Start(ctx); err != nil { ... }
//	defer eng.Stop()
package engine
