package session

import (
	"context"
	"log"
	"time"
)

// Sweeper periodically deletes expired sessions, independent of submissions.
type Sweeper struct {
	store    Store
	interval time.Duration
	stopChan chan struct{}
}

func NewSweeper(store Store, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	go s.loop()
	log.Printf("Session sweeper started (interval %s)", s.interval)
}

func (s *Sweeper) Stop() {
	select {
	case <-s.stopChan:
		return
	default:
		close(s.stopChan)
	}
}

func (s *Sweeper) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			count, err := s.store.SweepExpired(ctx)
			cancel()
			if err != nil {
				log.Printf("session sweep failed: %v", err)
				continue
			}
			if count > 0 {
				log.Printf("session sweep removed %d expired sessions", count)
			}
		}
	}
}
