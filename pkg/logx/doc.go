// Package logx is tempo's structured logging: a value-type Logger over
// zerolog with short file:line callers, a console sink, a rotating JSON
// file sink (lumberjack) and Throttled loggers for hot paths.
package logx
