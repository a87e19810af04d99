// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/samber/oops"

	"github.com/holomush/credauth/pkg/errutil"
)

// AsyncOptions sizes the delivery pool.
type AsyncOptions struct {
	Workers   int
	QueueSize int
	Logger    *slog.Logger
	Recorder  Recorder
}

type job struct {
	ctx context.Context
	msg Message
}

// AsyncSender queues messages for a fixed pool of workers. Send returns once
// the message is queued; delivery failures are logged by the worker.
type AsyncSender struct {
	next     Sender
	logger   *slog.Logger
	recorder Recorder
	queue    chan job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewAsyncSender starts the workers.
func NewAsyncSender(next Sender, opts AsyncOptions) *AsyncSender {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &AsyncSender{
		next:     next,
		logger:   opts.Logger,
		recorder: opts.Recorder,
		queue:    make(chan job, opts.QueueSize),
	}
	s.wg.Add(opts.Workers)
	for range opts.Workers {
		go s.work()
	}
	return s
}

// Send enqueues msg. The request context's values travel with the job but
// its cancellation does not, so a finished HTTP request does not abort the
// email.
func (s *AsyncSender) Send(ctx context.Context, msg Message) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return oops.Code(CodeClosed).With("kind", msg.Kind).Errorf("notifier is shut down")
	}

	select {
	case s.queue <- job{ctx: context.WithoutCancel(ctx), msg: msg}:
		return nil
	default:
		if s.recorder != nil {
			s.recorder.ObserveNotification(msg.Kind, StatusDropped)
		}
		return oops.Code(CodeQueueFull).
			With("kind", msg.Kind).
			With("capacity", cap(s.queue)).
			Errorf("notification queue is full")
	}
}

// Close stops accepting messages and waits for queued ones to be delivered,
// or for ctx to end.
func (s *AsyncSender) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return oops.Code("NOTIFY_DRAIN_TIMEOUT").With("pending", len(s.queue)).Wrap(ctx.Err())
	}
}

func (s *AsyncSender) work() {
	defer s.wg.Done()
	for j := range s.queue {
		if err := s.next.Send(j.ctx, j.msg); err != nil {
			errutil.LogErrorContext(j.ctx, s.logger, "notification delivery failed",
				oops.With("kind", j.msg.Kind).With("to", j.msg.To).Wrap(err))
		}
	}
}
