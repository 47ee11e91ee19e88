// Package housekeeping drives the server's periodic maintenance jobs on
// github.com/go-co-op/gocron/v2 — the layer above pkg/eventloop that
// session-timeout sweeping, SecureChannel token-rotation-deadline
// sweeping, subscription lifetime housekeeping and async-operation
// timeouts run on, since none of them need the EventLoop's
// phase-preserving cyclic-callback semantics (see pkg/eventloop's
// package doc). Grounded on the teacher's internal/taskmanager, which
// likewise owns one gocron.Scheduler and registers one job per
// maintenance concern against it.
package housekeeping

import (
	"time"

	"github.com/go-co-op/gocron/v2"

	cclog "github.com/uastack/uacore/pkg/log"
	"github.com/uastack/uacore/pkg/securechannel"
	"github.com/uastack/uacore/pkg/services"
	"github.com/uastack/uacore/pkg/session"
	"github.com/uastack/uacore/pkg/subscription"
)

// ChannelSource gives the token-rotation sweep read access to every
// SecureChannel currently open on the listener, without this package
// importing cmd/uaserver's connection bookkeeping.
type ChannelSource interface {
	Channels() []*securechannel.Channel
}

// Scheduler owns the gocron.Scheduler instance and the jobs registered
// against it.
type Scheduler struct {
	s gocron.Scheduler
}

// New creates a Scheduler; call a Register* method for each maintenance
// job wanted, then Start.
func New() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Scheduler{s: s}, nil
}

// RegisterSessionSweep evicts idle-timed-out Sessions on interval
// (spec §4.E).
func (h *Scheduler) RegisterSessionSweep(sessions *session.Manager, interval time.Duration) error {
	_, err := h.s.NewJob(gocron.DurationJob(interval), gocron.NewTask(func() {
		if evicted := sessions.SweepExpired(time.Now()); len(evicted) > 0 {
			cclog.Debugf("housekeeping: evicted %d idle session(s)", len(evicted))
		}
	}))
	return err
}

// RegisterChannelSweep closes every SecureChannel holding a token,
// current or pending next, whose RevisedLifetime has elapsed (spec §4.D).
func (h *Scheduler) RegisterChannelSweep(src ChannelSource, interval time.Duration) error {
	_, err := h.s.NewJob(gocron.DurationJob(interval), gocron.NewTask(func() {
		now := time.Now()
		closed := 0
		for _, ch := range src.Channels() {
			if len(ch.ExpiredTokens(now)) > 0 {
				ch.Close()
				closed++
			}
		}
		if closed > 0 {
			cclog.Debugf("housekeeping: closed %d securechannel(s) with expired tokens", closed)
		}
	}))
	return err
}

// RegisterSubscriptionSweep deletes Subscriptions whose owning client
// has stopped sending Publish requests entirely (spec §4.H).
func (h *Scheduler) RegisterSubscriptionSweep(subs *subscription.Manager, interval time.Duration) error {
	_, err := h.s.NewJob(gocron.DurationJob(interval), gocron.NewTask(func() {
		if deleted := subs.SweepStale(time.Now()); len(deleted) > 0 {
			cclog.Debugf("housekeeping: deleted %d stale subscription(s)", len(deleted))
		}
	}))
	return err
}

// RegisterAsyncTimeoutSweep fails, with BadTimeout, any async-queued
// operation that has sat unanswered longer than timeout (spec §4.G).
func (h *Scheduler) RegisterAsyncTimeoutSweep(queue *services.AsyncQueue, timeout, interval time.Duration) error {
	_, err := h.s.NewJob(gocron.DurationJob(interval), gocron.NewTask(func() {
		if expired := queue.ExpireOlderThan(time.Now(), timeout); len(expired) > 0 {
			cclog.Debugf("housekeeping: timed out %d async operation(s)", len(expired))
		}
	}))
	return err
}

func (h *Scheduler) Start() {
	h.s.Start()
}

func (h *Scheduler) Shutdown() error {
	return h.s.Shutdown()
}
