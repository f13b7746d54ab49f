// Package logging provides structured logging for robosock.
//
// It wraps log/slog and adds the pieces the daemon needs: child loggers
// tagged with a component or socket path, a shared destination that can be
// closed once, and an optional size-rotated log file.
//
// # Basic Usage
//
//	logger, err := logging.New(logging.Options{Level: "info", Format: "auto"})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	sockLog := logger.WithComponent("robosock").WithSocket("/run/robo.sock")
//	sockLog.Warn("socket file vanished")
//
// With Format "auto", entries written to a terminal use slog's text
// handler and everything else is JSON.
//
// # Log Rotation
//
// When Options.File is set the logger writes through a [RotatingWriter].
// Rotated files are named robosock.log.1, robosock.log.2, ... where .1 is
// the most recent, and get a .gz suffix when compression is enabled.
//
// # Testing
//
// Use [NopLogger] to discard output, or [NewWriterLogger] with a
// bytes.Buffer to assert on what was logged.
package logging
