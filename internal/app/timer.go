package app

import (
	"sync"
	"time"
)

// Timer delivers a recurring tick until stopped. Stop must be safe to call
// more than once and from inside the tick callback.
type Timer interface {
	Start(tick func())
	Stop()
}

type intervalTimer struct {
	interval  time.Duration
	stop      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewIntervalTimer ticks every interval on its own goroutine.
func NewIntervalTimer(interval time.Duration) Timer {
	return &intervalTimer{interval: interval, stop: make(chan struct{})}
}

// NewSecondTimer is the quiz countdown clock.
func NewSecondTimer() Timer {
	return NewIntervalTimer(time.Second)
}

func (t *intervalTimer) Start(tick func()) {
	t.startOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(t.interval)
			defer ticker.Stop()
			for {
				select {
				case <-t.stop:
					return
				case <-ticker.C:
					// A stop racing the ticker wins.
					select {
					case <-t.stop:
						return
					default:
					}
					tick()
				}
			}
		}()
	})
}

func (t *intervalTimer) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

// noopTimer is used when a session is driven by explicit Tick calls only.
type noopTimer struct{}

func (noopTimer) Start(func()) {}
func (noopTimer) Stop()        {}
