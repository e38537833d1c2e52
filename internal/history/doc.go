// Package history keeps a log of controller state transitions in SQLite.
//
// Every transition a controller makes is appended to the
// controller_transitions table by the engine's listener. The log answers
// "what did the hallway light do this morning?" from the CLI and is pruned
// on a schedule so it stays bounded.
//
// Timestamps are stored as RFC 3339 UTC text, which sorts correctly as a
// string and keeps the index on (controller_id, created_at) usable.
package history
