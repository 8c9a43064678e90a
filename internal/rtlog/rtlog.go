// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The ProbeChain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the ProbeChain. If not, see <http://www.gnu.org/licenses/>.

// Package rtlog is the structured, terminal-aware logger of the
// execution core. Two call sites log through it: stack growth in
// package vm and the tag-method cache init failure in package state.
package rtlog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Level is a log severity, ordered from most to least verbose.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelCrit
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "EROR"
	case LevelCrit:
		return "CRIT"
	default:
		return "????"
	}
}

var levelColor = map[Level]*color.Color{
	LevelDebug: color.New(color.FgHiBlack),
	LevelInfo:  color.New(color.FgGreen),
	LevelWarn:  color.New(color.FgYellow),
	LevelError: color.New(color.FgRed),
	LevelCrit:  color.New(color.FgHiRed, color.Bold),
}

// Logger writes leveled, key-value log lines to an underlying writer.
// The zero value is not usable; construct with New.
type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	minLevel Level
	colorize bool
	ctx      []interface{} // inherited key/value pairs from With
}

// New constructs a Logger writing to w. If w is os.Stdout/os.Stderr and
// attached to a real terminal, output is ANSI-colorized and ANSI-safe on
// Windows consoles via go-colorable; otherwise it is plain text.
func New(w io.Writer, min Level) *Logger {
	colorize := false
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		w = colorable.NewColorable(f)
		colorize = true
	}
	return &Logger{out: w, minLevel: min, colorize: colorize}
}

// Default is a Logger over stderr at LevelInfo, used when no Logger is
// threaded explicitly into a component.
var Default = New(os.Stderr, LevelInfo)

// With returns a child Logger that prepends ctx to every subsequent line.
func (l *Logger) With(ctx ...interface{}) *Logger {
	child := &Logger{out: l.out, minLevel: l.minLevel, colorize: l.colorize}
	child.ctx = append(append([]interface{}{}, l.ctx...), ctx...)
	return child
}

func (l *Logger) log(lvl Level, msg string, kv []interface{}) {
	if lvl < l.minLevel {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var b strings.Builder
	ts := time.Now().Format("15:04:05.000")
	levelStr := lvl.String()
	if l.colorize {
		levelStr = levelColor[lvl].Sprint(lvl.String())
	}
	fmt.Fprintf(&b, "%s[%s] %s", levelStr, ts, msg)
	writePairs(&b, l.ctx)
	writePairs(&b, kv)
	if lvl >= LevelError {
		// Capture the call site two frames up (skip log + caller wrapper)
		// so error/crit lines point at the failing operation.
		cs := stack.Trace().TrimRuntime()
		if len(cs) > 2 {
			fmt.Fprintf(&b, " stack=%v", cs[2:min(len(cs), 6)])
		}
	}
	b.WriteByte('\n')
	io.WriteString(l.out, b.String())

	if lvl == LevelCrit {
		os.Exit(2)
	}
}

func writePairs(b *strings.Builder, kv []interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(b, " %v=%v", kv[i], kv[i+1])
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.log(LevelDebug, msg, kv) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.log(LevelInfo, msg, kv) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.log(LevelWarn, msg, kv) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.log(LevelError, msg, kv) }
func (l *Logger) Crit(msg string, kv ...interface{})  { l.log(LevelCrit, msg, kv) }
