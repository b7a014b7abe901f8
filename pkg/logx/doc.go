// Package logx configures boothqr's structured logging.
//
// A small wrapper (logx.Logger) on top of zerolog keeps:
//   - Console output readable (short timestamp + short caller, colour only on a TTY)
//   - File output JSON-structured
//   - Level and sinks swappable at runtime through Service.Apply
package logx
