// Package irq provides the "data pending" event sources which trigger
// transfers initiated by the co-processor.
package irq

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Source blocks until the co-processor signals pending data.
type Source interface {
	WaitEvent(ctx context.Context) error
}

// WaitEventFunc is func type of Source.
type WaitEventFunc func(context.Context) error

// WaitEvent implements Source.
func (f WaitEventFunc) WaitEvent(ctx context.Context) error {
	return f(ctx)
}

// DefaultPollInterval matches the receive timeout of the H7 firmware.
const DefaultPollInterval = 100 * time.Millisecond

// Chan is a Source fired programmatically. Triggers are edge-like:
// multiple triggers before the event is consumed fire only once.
type Chan struct {
	ch chan struct{}
}

// NewChan creates a Chan.
func NewChan() *Chan {
	return &Chan{ch: make(chan struct{}, 1)}
}

// Trigger fires the event.
func (c *Chan) Trigger() {
	select {
	case c.ch <- struct{}{}:
	default:
	}
}

// WaitEvent implements Source.
func (c *Chan) WaitEvent(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ch:
		return nil
	}
}

// Ticker fires periodically, polling the co-processor when no interrupt
// line is wired.
type Ticker struct {
	ticker *time.Ticker
}

// NewTicker creates a Ticker.
func NewTicker(interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Ticker{ticker: time.NewTicker(interval)}
}

// WaitEvent implements Source.
func (t *Ticker) WaitEvent(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.ticker.C:
		return nil
	}
}

// Close stops the ticker.
func (t *Ticker) Close() error {
	t.ticker.Stop()
	return nil
}

// Never is a Source which never fires.
var Never = WaitEventFunc(func(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
})

// Open creates a Source from a spec:
//
//	gpio:<line>    falling edge on a sysfs GPIO line
//	poll:<dur>     periodic polling, e.g. poll:100ms
//	none           never fires
func Open(spec string) (Source, error) {
	kind, arg := spec, ""
	if pos := strings.IndexByte(spec, ':'); pos >= 0 {
		kind, arg = spec[:pos], spec[pos+1:]
	}
	switch kind {
	case "", "none":
		return Never, nil
	case "poll":
		interval := DefaultPollInterval
		if arg != "" {
			d, err := time.ParseDuration(arg)
			if err != nil {
				return nil, fmt.Errorf("invalid poll interval %q: %w", arg, err)
			}
			interval = d
		}
		return NewTicker(interval), nil
	case "gpio":
		line, err := strconv.Atoi(arg)
		if err != nil || line < 0 {
			return nil, fmt.Errorf("invalid gpio line %q", arg)
		}
		return OpenGPIO(line)
	default:
		return nil, fmt.Errorf("unknown event source %q", kind)
	}
}
