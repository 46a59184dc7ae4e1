package notify

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls the async delivery worker.
type Config struct {
	Enabled    bool
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// Dispatcher fans messages from a bounded queue into the mailer on a single
// background goroutine. Enqueue never blocks: when the queue is full the
// message is counted as dropped instead of stalling the calling operation.
type Dispatcher struct {
	mailer     Mailer
	logger     *slog.Logger
	ch         chan Message
	done       chan struct{}
	wg         sync.WaitGroup
	dropped    atomic.Uint64
	closed     atomic.Bool
	closeOnce  sync.Once
	maxRetries int
	retryDelay time.Duration
}

// NewDispatcher starts the delivery worker. Returns nil when delivery is
// disabled or no mailer is configured; a nil dispatcher safely drops
// everything.
func NewDispatcher(cfg Config, mailer Mailer, logger *slog.Logger) *Dispatcher {
	if !cfg.Enabled || mailer == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = 256
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}

	d := &Dispatcher{
		mailer:     mailer,
		logger:     logger,
		ch:         make(chan Message, buffer),
		done:       make(chan struct{}),
		maxRetries: retries,
		retryDelay: delay,
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case msg := <-d.ch:
			d.deliver(msg)
		case <-d.done:
			// Drain what is already queued before exiting.
			for {
				select {
				case msg := <-d.ch:
					d.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(msg Message) {
	var err error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(d.retryDelay)
		}
		if err = d.mailer.Send(msg); err == nil {
			return
		}
	}
	d.dropped.Add(1)
	d.logger.Warn("mail delivery failed",
		"to", msg.To,
		"subject", msg.Subject,
		"error", err,
	)
}

// Enqueue queues a message for background delivery.
func (d *Dispatcher) Enqueue(msg Message) {
	if d == nil || d.closed.Load() {
		return
	}
	select {
	case d.ch <- msg:
	default:
		d.dropped.Add(1)
	}
}

// Close stops the worker after draining queued messages.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped reports how many messages were lost to a full queue or exhausted
// retries.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
