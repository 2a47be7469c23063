// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
// package log is a thin wrapper for logrus with lazy evaluation of WithFields
// funcs and a shrinked API (no Fatal, Panic...). Composite loggers (WithError,
// WithFields...) are built lazily so no fields are assembled when the entry is
// filtered out by the current level.
package log

import (
	"io"

	"github.com/sirupsen/logrus"
)

var l = logrus.StandardLogger()

// Entry is a functional wrapper for the logrus.Entry type
type Entry func() *logrus.Entry

func (e Entry) Debug(msg string) {
	if l.IsLevelEnabled(logrus.DebugLevel) {
		e().Debug(msg)
	}
}

func (e Entry) Debugf(format string, args ...interface{}) {
	if l.IsLevelEnabled(logrus.DebugLevel) {
		e().Debugf(format, args...)
	}
}

func (e Entry) Tracef(format string, args ...interface{}) {
	if l.IsLevelEnabled(logrus.TraceLevel) {
		e().Tracef(format, args...)
	}
}

func (e Entry) Info(msg string) {
	if l.IsLevelEnabled(logrus.InfoLevel) {
		e().Info(msg)
	}
}

func (e Entry) Infof(format string, args ...interface{}) {
	if l.IsLevelEnabled(logrus.InfoLevel) {
		e().Infof(format, args...)
	}
}

func (e Entry) Warn(msg string) {
	if l.IsLevelEnabled(logrus.WarnLevel) {
		e().Warn(msg)
	}
}

func (e Entry) Error(msg string) {
	if l.IsLevelEnabled(logrus.ErrorLevel) {
		e().Error(msg)
	}
}

func (e Entry) IsDebugEnabled() bool {
	return l.IsLevelEnabled(logrus.DebugLevel)
}

func (e Entry) WithField(key string, value interface{}) Entry {
	return func() *logrus.Entry {
		return e().WithField(key, value)
	}
}

func (e Entry) WithFields(f logrus.Fields) Entry {
	return func() *logrus.Entry {
		return e().WithFields(f)
	}
}

func (e Entry) WithFieldsF(lff func() logrus.Fields) Entry {
	return func() *logrus.Entry {
		return e().WithFields(lff())
	}
}

func (e Entry) WithError(err error) Entry {
	return func() *logrus.Entry {
		return e().WithError(err)
	}
}

func WithField(key string, value interface{}) Entry {
	return func() *logrus.Entry {
		return l.WithField(key, value)
	}
}

func WithFields(f logrus.Fields) Entry {
	return func() *logrus.Entry {
		return l.WithFields(f)
	}
}

func WithError(err error) Entry {
	return func() *logrus.Entry {
		return l.WithError(err)
	}
}

// WithComponent adds a default "component" field to identify the logger owner.
func WithComponent(name string) Entry {
	return WithField("component", name)
}

func SetOutput(out io.Writer) {
	l.SetOutput(out)
}

func SetFormatter(f logrus.Formatter) {
	l.SetFormatter(f)
}

func SetLevel(level logrus.Level) {
	l.SetLevel(level)
}

func GetLevel() logrus.Level {
	return l.GetLevel()
}
