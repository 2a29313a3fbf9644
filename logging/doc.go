// Package logging provides the Logger interface the loop, runner and tools
// log through.
//
//   - Logger is four leveled methods taking an event name and key/value pairs.
//   - With scopes a Logger to fixed attributes such as run_id or tool.
//   - LoopLogger is the slog-backed implementation (text or JSON).
//   - NoOpLogger discards everything and is the default.
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	loop := flow.New(m, catalog, func(o *flow.Options) { o.Logger = logger })
package logging
