// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

package pipeline

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"github.com/tomtom215/adwatch/internal/logging"
)

// zerologAdapter bridges Watermill's logger interface onto the process-wide
// zerolog logger so bus internals log in the same format as everything else.
type zerologAdapter struct {
	fields watermill.LogFields
}

// NewLoggerAdapter returns a watermill.LoggerAdapter backed by zerolog.
func NewLoggerAdapter() watermill.LoggerAdapter {
	return &zerologAdapter{}
}

func (a *zerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.emit(logging.Error().Err(err), msg, fields)
}

func (a *zerologAdapter) Info(msg string, fields watermill.LogFields) {
	a.emit(logging.Info(), msg, fields)
}

func (a *zerologAdapter) Debug(msg string, fields watermill.LogFields) {
	a.emit(logging.Debug(), msg, fields)
}

func (a *zerologAdapter) Trace(msg string, fields watermill.LogFields) {
	a.emit(logging.Trace(), msg, fields)
}

func (a *zerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &zerologAdapter{fields: a.fields.Add(fields)}
}

func (a *zerologAdapter) emit(ev *zerolog.Event, msg string, fields watermill.LogFields) {
	for k, v := range a.fields {
		ev = ev.Interface(k, v)
	}
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}
