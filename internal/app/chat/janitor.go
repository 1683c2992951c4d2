// internal/app/chat/janitor.go
package chat

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// PresenceJanitor is a background worker that sweeps expired typing entries
// and broadcasts the resulting presence transitions. It exists so expiry is
// an observable event for connected clients, not just a filtered read.
type PresenceJanitor struct {
	presence    *PresenceTracker
	broadcaster *Broadcaster
	log         *zap.Logger
	interval    time.Duration
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// NewPresenceJanitor creates a janitor sweeping at the given interval.
// interval <= 0 defaults to a quarter of the typing TTL's default.
func NewPresenceJanitor(presence *PresenceTracker, broadcaster *Broadcaster, log *zap.Logger, interval time.Duration) *PresenceJanitor {
	if interval <= 0 {
		interval = DefaultTypingTTL / 4
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PresenceJanitor{
		presence:    presence,
		broadcaster: broadcaster,
		log:         log,
		interval:    interval,
		stopCh:      make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (j *PresenceJanitor) Start() {
	j.wg.Add(1)
	go j.run()
	j.log.Info("presence janitor started", zap.Duration("interval", j.interval))
}

// Stop signals the worker to stop and waits for it to finish.
func (j *PresenceJanitor) Stop() {
	close(j.stopCh)
	j.wg.Wait()
	j.log.Info("presence janitor stopped")
}

func (j *PresenceJanitor) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stopCh:
			return
		case <-ticker.C:
			j.SweepOnce()
		}
	}
}

// SweepOnce performs one sweep and broadcasts the transitions. Exposed so
// tests can drive expiry without waiting on the ticker.
func (j *PresenceJanitor) SweepOnce() {
	for _, ev := range j.presence.Sweep() {
		j.broadcaster.Publish(ev.GroupID, ev)
	}
}
