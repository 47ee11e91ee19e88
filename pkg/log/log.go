// Package log provides leveled logging for uacore.
//
// Time/Date are omitted by default because systemd adds them for us; pass
// -logdate to re-enable. Uses the systemd syslog prefix convention:
// https://www.freedesktop.org/software/systemd/man/sd-daemon.html
package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

var logDateTime bool

var (
	DebugWriter io.Writer = os.Stderr
	NoteWriter  io.Writer = os.Stderr
	InfoWriter  io.Writer = os.Stderr
	WarnWriter  io.Writer = os.Stderr
	ErrWriter   io.Writer = os.Stderr
	CritWriter  io.Writer = os.Stderr
)

const (
	DebugPrefix = "<7>[DEBUG]    "
	InfoPrefix  = "<6>[INFO]     "
	NotePrefix  = "<5>[NOTICE]   "
	WarnPrefix  = "<4>[WARNING]  "
	ErrPrefix   = "<3>[ERROR]    "
	CritPrefix  = "<2>[CRITICAL] "
)

var (
	debugLog = log.New(DebugWriter, DebugPrefix, 0)
	infoLog  = log.New(InfoWriter, InfoPrefix, 0)
	noteLog  = log.New(NoteWriter, NotePrefix, log.Lshortfile)
	warnLog  = log.New(WarnWriter, WarnPrefix, log.Lshortfile)
	errLog   = log.New(ErrWriter, ErrPrefix, log.Llongfile)
	critLog  = log.New(CritWriter, CritPrefix, log.Llongfile)

	debugTimeLog = log.New(DebugWriter, DebugPrefix, log.LstdFlags)
	infoTimeLog  = log.New(InfoWriter, InfoPrefix, log.LstdFlags)
	noteTimeLog  = log.New(NoteWriter, NotePrefix, log.LstdFlags|log.Lshortfile)
	warnTimeLog  = log.New(WarnWriter, WarnPrefix, log.LstdFlags|log.Lshortfile)
	errTimeLog   = log.New(ErrWriter, ErrPrefix, log.LstdFlags|log.Llongfile)
	critTimeLog  = log.New(CritWriter, CritPrefix, log.LstdFlags|log.Llongfile)
)

// SetLevel discards writers below lvl. "debug" keeps everything.
func SetLevel(lvl string) {
	switch lvl {
	case "crit":
		ErrWriter = io.Discard
		fallthrough
	case "err", "fatal":
		WarnWriter = io.Discard
		fallthrough
	case "warn":
		NoteWriter = io.Discard
		fallthrough
	case "notice":
		InfoWriter = io.Discard
		fallthrough
	case "info":
		DebugWriter = io.Discard
	case "debug":
	default:
		fmt.Fprintf(os.Stderr, "pkg/log: invalid loglevel %q, defaulting to debug\n", lvl)
		SetLevel("debug")
	}
}

func SetLogDateTime(on bool) { logDateTime = on }

func emit(w io.Writer, plain, withDate *log.Logger, out string) {
	if w == io.Discard {
		return
	}
	if logDateTime {
		withDate.Output(3, out)
	} else {
		plain.Output(3, out)
	}
}

func Print(v ...any) { Info(v...) }
func Debug(v ...any) { emit(DebugWriter, debugLog, debugTimeLog, fmt.Sprint(v...)) }
func Info(v ...any)  { emit(InfoWriter, infoLog, infoTimeLog, fmt.Sprint(v...)) }
func Note(v ...any)  { emit(NoteWriter, noteLog, noteTimeLog, fmt.Sprint(v...)) }
func Warn(v ...any)  { emit(WarnWriter, warnLog, warnTimeLog, fmt.Sprint(v...)) }
func Error(v ...any) { emit(ErrWriter, errLog, errTimeLog, fmt.Sprint(v...)) }
func Crit(v ...any)  { emit(CritWriter, critLog, critTimeLog, fmt.Sprint(v...)) }

// Panic logs at error level then panics, for invariant violations.
func Panic(v ...any) {
	Error(v...)
	panic(fmt.Sprint(v...))
}

// Fatal logs at error level and exits(1).
func Fatal(v ...any) {
	Error(v...)
	os.Exit(1)
}

// Abort logs at critical level and exits(1); used for unrecoverable
// startup failures (bad config, unbindable listener).
func Abort(v ...any) {
	Crit(v...)
	os.Exit(1)
}

func Printf(format string, v ...any) { Infof(format, v...) }
func Debugf(format string, v ...any) { emit(DebugWriter, debugLog, debugTimeLog, fmt.Sprintf(format, v...)) }
func Infof(format string, v ...any)  { emit(InfoWriter, infoLog, infoTimeLog, fmt.Sprintf(format, v...)) }
func Notef(format string, v ...any)  { emit(NoteWriter, noteLog, noteTimeLog, fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...any)  { emit(WarnWriter, warnLog, warnTimeLog, fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...any) { emit(ErrWriter, errLog, errTimeLog, fmt.Sprintf(format, v...)) }
func Critf(format string, v ...any)  { emit(CritWriter, critLog, critTimeLog, fmt.Sprintf(format, v...)) }

func Panicf(format string, v ...any) {
	Errorf(format, v...)
	panic(fmt.Sprintf(format, v...))
}

func Fatalf(format string, v ...any) {
	Errorf(format, v...)
	os.Exit(1)
}

func Abortf(format string, v ...any) {
	Critf(format, v...)
	os.Exit(1)
}

// Finfof writes directly to w at info level, bypassing InfoWriter; used
// by HTTP access logging, which already has its own writer (gorilla/
// handlers.CustomLoggingHandler) that may differ from InfoWriter.
func Finfof(w io.Writer, format string, v ...any) {
	if w == io.Discard {
		return
	}
	if logDateTime {
		fmt.Fprintf(w, "%s"+InfoPrefix+format+"\n", append([]any{time.Now().String()}, v...)...)
	} else {
		fmt.Fprintf(w, InfoPrefix+format+"\n", v...)
	}
}
