// Package logging provides structured logging for the smart controller
// service.
//
// It wraps log/slog so every component logs the same way: JSON in
// production, text on a terminal, and service/version fields on every
// entry. Controllers add their own id:
//
//	log := logger.With("controller", "bedroom-fan")
//	log.Info("transition", "from", "OFF", "to", "ON")
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
