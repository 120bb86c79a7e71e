package logger

import (
	"github.com/teranos/softwaremap/sym"
	"go.uber.org/zap"
)

// Symbol-aware logging helpers.
// These functions log with the symbol as a structured field, not in the message.
//
// Usage:
//
//	logger.IxInfow(log, "Fetched rows", "kind", kind, "count", n)
//
// This makes logs queryable by stage and keeps messages clean.

func withSymbol(symbol string, keysAndValues []interface{}) []interface{} {
	return append([]interface{}{FieldSymbol, symbol}, keysAndValues...)
}

// IxInfow logs an ingest-stage info message with the IX symbol (⨳)
func IxInfow(log *zap.SugaredLogger, msg string, keysAndValues ...interface{}) {
	if log != nil {
		log.Infow(msg, withSymbol(sym.IX, keysAndValues)...)
	}
}

// IxWarnw logs an ingest-stage warning with the IX symbol (⨳)
func IxWarnw(log *zap.SugaredLogger, msg string, keysAndValues ...interface{}) {
	if log != nil {
		log.Warnw(msg, withSymbol(sym.IX, keysAndValues)...)
	}
}

// PulseInfow logs a scheduler info message with the Pulse symbol (꩜)
func PulseInfow(log *zap.SugaredLogger, msg string, keysAndValues ...interface{}) {
	if log != nil {
		log.Infow(msg, withSymbol(sym.Pulse, keysAndValues)...)
	}
}

// PulseErrorw logs a scheduler error with the Pulse symbol (꩜)
func PulseErrorw(log *zap.SugaredLogger, msg string, keysAndValues ...interface{}) {
	if log != nil {
		log.Errorw(msg, withSymbol(sym.Pulse, keysAndValues)...)
	}
}

// PulseOpenInfow logs scheduler startup with the PulseOpen symbol (✿)
func PulseOpenInfow(log *zap.SugaredLogger, msg string, keysAndValues ...interface{}) {
	if log != nil {
		log.Infow(msg, withSymbol(sym.PulseOpen, keysAndValues)...)
	}
}

// PulseCloseInfow logs scheduler shutdown with the PulseClose symbol (❀)
func PulseCloseInfow(log *zap.SugaredLogger, msg string, keysAndValues ...interface{}) {
	if log != nil {
		log.Infow(msg, withSymbol(sym.PulseClose, keysAndValues)...)
	}
}
