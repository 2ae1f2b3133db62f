package transport

import (
	"log/slog"
	"time"
)

type Options struct {
	Logger *slog.Logger
	// DialTimeout bounds Connect when the caller's context has no deadline.
	DialTimeout time.Duration
	BaudRate    int
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o Options) dialTimeout() time.Duration {
	if o.DialTimeout <= 0 {
		return 10 * time.Second
	}
	return o.DialTimeout
}
