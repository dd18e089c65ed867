/**
* Copyright 2018 Comcast Cable Communications Management, LLC
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You may obtain a copy of the License at
* http://www.apache.org/licenses/LICENSE-2.0
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
 */

// Package log provides a structured logger, built on go-kit/log, with a
// level filter and a Pairs shorthand for attaching request detail to a
// log line.
package log

import (
	"os"
	"strings"
	"sync"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Pairs is a shorthand for structured log detail, e.g.:
//
//	log.Info("registering route", log.Pairs{"bucket": "images", "prefix": "/img"})
type Pairs map[string]interface{}

// Logger is the interface consumed by the rest of the application.
type Logger interface {
	Debug(event string, detail Pairs)
	Info(event string, detail Pairs)
	Warn(event string, detail Pairs)
	WarnOnce(key, event string, detail Pairs)
	Error(event string, detail Pairs)
	Fatal(code int, event string, detail Pairs)
}

type logger struct {
	base  kitlog.Logger
	level level.Option
	once  sync.Map
}

var std Logger = New("info", "")

// New constructs a Logger writing to stdout, or to logFile when provided
// (rotated via lumberjack), filtered to the given level.
func New(logLevel, logFile string) Logger {
	var w = os.Stdout
	var base kitlog.Logger
	if logFile != "" {
		base = kitlog.NewJSONLogger(kitlog.NewSyncWriter(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    256,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		}))
	} else {
		base = kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(w))
	}
	base = kitlog.With(base, "ts", kitlog.DefaultTimestampUTC, "app", "originshield")
	return &logger{base: base, level: levelOption(logLevel)}
}

// SetGlobalLogger replaces the package-level logger used by the
// package-scoped Debug/Info/Warn/Error/Fatal helpers.
func SetGlobalLogger(l Logger) { std = l }

func levelOption(name string) level.Option {
	switch strings.ToLower(name) {
	case "debug", "trace":
		return level.AllowDebug()
	case "warn", "warning":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}

func (l *logger) log(withLevel func(kitlog.Logger) kitlog.Logger, event string, detail Pairs) {
	kvs := make([]interface{}, 0, 2+len(detail)*2)
	kvs = append(kvs, "event", event)
	for k, v := range detail {
		kvs = append(kvs, k, v)
	}
	withLevel(level.NewFilter(l.base, l.level)).Log(kvs...)
}

func (l *logger) Debug(event string, detail Pairs) { l.log(level.Debug, event, detail) }
func (l *logger) Info(event string, detail Pairs)  { l.log(level.Info, event, detail) }
func (l *logger) Warn(event string, detail Pairs)  { l.log(level.Warn, event, detail) }
func (l *logger) Error(event string, detail Pairs) { l.log(level.Error, event, detail) }

// WarnOnce logs a Warn-level event at most once per unique key for the
// lifetime of the process; used for noisy conditions like clock skew
// against an origin that would otherwise log on every request.
func (l *logger) WarnOnce(key, event string, detail Pairs) {
	if _, loaded := l.once.LoadOrStore(key, time.Now()); !loaded {
		l.Warn(event, detail)
	}
}

func (l *logger) Fatal(code int, event string, detail Pairs) {
	l.log(level.Error, event, detail)
	os.Exit(code)
}

// Package-scoped convenience wrappers over the global logger.
func Debug(event string, detail Pairs)          { std.Debug(event, detail) }
func Info(event string, detail Pairs)           { std.Info(event, detail) }
func Warn(event string, detail Pairs)            { std.Warn(event, detail) }
func WarnOnce(key, event string, detail Pairs)   { std.WarnOnce(key, event, detail) }
func Error(event string, detail Pairs)           { std.Error(event, detail) }
func Fatal(code int, event string, detail Pairs) { std.Fatal(code, event, detail) }
