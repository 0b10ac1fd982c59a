// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

// Package logging holds the logger used across the throttler packages. It defaults to a
// logrus logger writing to stderr; SetLogger swaps in anything that satisfies Logger.
package logging

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is the subset of a leveled logger the throttler packages use. *logrus.Logger and
// *logrus.Entry both satisfy it.
type Logger interface {
	Trace(args ...interface{})
	Tracef(format string, args ...interface{})
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})
	Print(args ...interface{})
	Printf(format string, args ...interface{})
	Println(args ...interface{})
}

var (
	mu     sync.RWMutex
	logger Logger = newDefaultLogger()
)

func newDefaultLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = os.Stderr
	l.Level = logrus.InfoLevel
	return l
}

// SetLogger sets the logger to be used
func SetLogger(l Logger) {
	if l == nil {
		panic("Cannot set a nil logger")
	}

	mu.Lock()
	defer mu.Unlock()
	logger = l
}

// CurrentLogger gets the logger to be used
func CurrentLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// SetVerbose switches the default logrus logger between info and debug levels. It has no
// effect once a custom logger has been set.
func SetVerbose(verbose bool) {
	if l, ok := CurrentLogger().(*logrus.Logger); ok {
		if verbose {
			l.SetLevel(logrus.DebugLevel)
		} else {
			l.SetLevel(logrus.InfoLevel)
		}
	}
}

func Trace(args ...interface{}) {
	CurrentLogger().Trace(args...)
}

func Tracef(format string, args ...interface{}) {
	CurrentLogger().Tracef(format, args...)
}

func Debug(args ...interface{}) {
	CurrentLogger().Debug(args...)
}

func Debugf(format string, args ...interface{}) {
	CurrentLogger().Debugf(format, args...)
}

func Info(args ...interface{}) {
	CurrentLogger().Info(args...)
}

func Infof(format string, args ...interface{}) {
	CurrentLogger().Infof(format, args...)
}

func Warn(args ...interface{}) {
	CurrentLogger().Warn(args...)
}

func Warnf(format string, args ...interface{}) {
	CurrentLogger().Warnf(format, args...)
}

func Error(args ...interface{}) {
	CurrentLogger().Error(args...)
}

func Errorf(format string, args ...interface{}) {
	CurrentLogger().Errorf(format, args...)
}

// Fatal is equivalent to Print() followed by a call to os.Exit() with a non-zero exit code.
func Fatal(args ...interface{}) {
	CurrentLogger().Fatal(args...)
}

// Fatalf is equivalent to Printf() followed by a call to os.Exit() with a non-zero exit code.
func Fatalf(format string, args ...interface{}) {
	CurrentLogger().Fatalf(format, args...)
}

// Print prints to the logger. Arguments are handled in the manner of fmt.Print.
func Print(args ...interface{}) {
	CurrentLogger().Print(args...)
}

// Printf prints to the logger. Arguments are handled in the manner of fmt.Printf.
func Printf(format string, args ...interface{}) {
	CurrentLogger().Printf(format, args...)
}

// Println prints to the logger. Arguments are handled in the manner of fmt.Println.
func Println(args ...interface{}) {
	CurrentLogger().Println(args...)
}
