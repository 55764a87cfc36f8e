// Package logging provides the leveled logging interface used across the
// video converter.
//
// Messages are printf-style (logging.Info("saved %s", name)) and are written
// through a single zerolog logger. When stdout is a terminal the output is
// human-readable; otherwise each message is one JSON object per line.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The level comes from DEBUG or LOG_LEVEL unless Configure is given one.
package logging
