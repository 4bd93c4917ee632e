// Package logger provides structured logging for the application.
//
// It configures a log/slog JSON handler with the configured level and carries
// request-scoped loggers through context.Context.
package logger
