package queue

import (
	"fmt"
	"log/slog"
	"os"
)

// Logger routes asynq's internal logging through slog.
type Logger struct {
	l *slog.Logger
}

func NewLogger(l *slog.Logger) *Logger {
	return &Logger{l: l.With("component", "asynq")}
}

func (a *Logger) Debug(args ...interface{}) { a.l.Debug(fmt.Sprint(args...)) }
func (a *Logger) Info(args ...interface{})  { a.l.Info(fmt.Sprint(args...)) }
func (a *Logger) Warn(args ...interface{})  { a.l.Warn(fmt.Sprint(args...)) }
func (a *Logger) Error(args ...interface{}) { a.l.Error(fmt.Sprint(args...)) }

func (a *Logger) Fatal(args ...interface{}) {
	a.l.Error(fmt.Sprint(args...))
	os.Exit(1)
}
