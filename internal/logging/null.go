package logging

import "context"

// NullLogger discards everything. Useful in tests.
type NullLogger struct{}

func NewNullLogger() *NullLogger { return &NullLogger{} }

func (l *NullLogger) Debug(context.Context, string, ...any) {}
func (l *NullLogger) Info(context.Context, string, ...any)  {}
func (l *NullLogger) Warn(context.Context, string, ...any)  {}
func (l *NullLogger) Error(context.Context, string, ...any) {}
func (l *NullLogger) With(...any) Logger                    { return l }
