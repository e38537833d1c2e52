// Package metrics exposes controller activity to Prometheus.
//
// A Collector implements controller.Metrics and owns a private registry
// so tests and multiple instances never collide on the default one. The
// Server serves that registry over HTTP on the address from the metrics
// section of config.yaml.
//
// Exported series (namespace "smartctl"):
//
//	controller_transitions_total{controller_id,controller_type,from,to}
//	controller_commands_total{controller_id,service,result}
//	controller_events_ignored_total{controller_id,state,event}
//	controller_updates_skipped_total{controller_id}
//	controller_value{controller_id,name}
package metrics
