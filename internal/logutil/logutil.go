// Package logutil has helpers for slog loggers.
package logutil

import "github.com/decred/slog"

// prefixLogger adds a prefix to every message of the wrapped logger. Level
// and SetLevel are those of the wrapped logger.
type prefixLogger struct {
	slog.Logger
	prefix string
}

func (p *prefixLogger) args(v []interface{}) []interface{} {
	return append([]interface{}{p.prefix}, v...)
}

func (p *prefixLogger) Tracef(format string, params ...interface{}) {
	p.Logger.Tracef(p.prefix+" "+format, params...)
}

func (p *prefixLogger) Debugf(format string, params ...interface{}) {
	p.Logger.Debugf(p.prefix+" "+format, params...)
}

func (p *prefixLogger) Infof(format string, params ...interface{}) {
	p.Logger.Infof(p.prefix+" "+format, params...)
}

func (p *prefixLogger) Warnf(format string, params ...interface{}) {
	p.Logger.Warnf(p.prefix+" "+format, params...)
}

func (p *prefixLogger) Errorf(format string, params ...interface{}) {
	p.Logger.Errorf(p.prefix+" "+format, params...)
}

func (p *prefixLogger) Criticalf(format string, params ...interface{}) {
	p.Logger.Criticalf(p.prefix+" "+format, params...)
}

func (p *prefixLogger) Trace(v ...interface{})    { p.Logger.Trace(p.args(v)...) }
func (p *prefixLogger) Debug(v ...interface{})    { p.Logger.Debug(p.args(v)...) }
func (p *prefixLogger) Info(v ...interface{})     { p.Logger.Info(p.args(v)...) }
func (p *prefixLogger) Warn(v ...interface{})     { p.Logger.Warn(p.args(v)...) }
func (p *prefixLogger) Error(v ...interface{})    { p.Logger.Error(p.args(v)...) }
func (p *prefixLogger) Critical(v ...interface{}) { p.Logger.Critical(p.args(v)...) }

// PrefixLogger returns a logger that prepends prefix to every message.
func PrefixLogger(log slog.Logger, prefix string) slog.Logger {
	if log == nil {
		log = slog.Disabled
	}
	return &prefixLogger{Logger: log, prefix: prefix}
}
