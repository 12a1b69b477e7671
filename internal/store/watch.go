package store

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Follower delivers the latest version of a document on its own goroutine.
// Notify never blocks: notifications that arrive while a delivery is running
// collapse into one more delivery. A failed delivery is retried without a
// further Notify.
type Follower struct {
	deliver func(ctx context.Context) error
	logger  *slog.Logger
	kick    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// Follow starts a follower and schedules the initial delivery.
func Follow(deliver func(ctx context.Context) error, logger *slog.Logger) *Follower {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	f := &Follower{
		deliver: deliver,
		logger:  logger,
		kick:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	f.Notify()
	go f.run()
	return f
}

// Notify schedules a delivery of the latest version.
func (f *Follower) Notify() {
	select {
	case f.kick <- struct{}{}:
	default:
	}
}

// Stop ends the follower and waits for an in-flight delivery.
func (f *Follower) Stop() {
	f.once.Do(func() {
		f.cancel()
		<-f.done
	})
}

// Failed deliveries are retried with a doubling delay until one succeeds.
const (
	retryMin = 50 * time.Millisecond
	retryMax = 5 * time.Second
)

func (f *Follower) run() {
	defer close(f.done)
	var retry <-chan time.Time
	backoff := retryMin
	for {
		select {
		case <-f.ctx.Done():
			return
		case <-f.kick:
		case <-retry:
		}
		ctx, cancel := context.WithTimeout(f.ctx, 10*time.Second)
		err := f.deliver(ctx)
		cancel()
		if f.ctx.Err() != nil {
			return
		}
		if err == nil {
			retry = nil
			backoff = retryMin
			continue
		}
		f.logger.Warn("watch delivery failed", "error", err, "retry_in", backoff)
		retry = time.After(backoff)
		backoff = min(backoff*2, retryMax)
	}
}

// followers is a registry of followers per document key.
type followers struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]*Follower
}

func newFollowers() *followers {
	return &followers{subs: make(map[string]map[int]*Follower)}
}

func (r *followers) add(key string, f *Follower) func() {
	r.mu.Lock()
	id := r.next
	r.next++
	if r.subs[key] == nil {
		r.subs[key] = make(map[int]*Follower)
	}
	r.subs[key][id] = f
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subs[key], id)
		if len(r.subs[key]) == 0 {
			delete(r.subs, key)
		}
		r.mu.Unlock()
		f.Stop()
	}
}

func (r *followers) notify(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.subs[key] {
		f.Notify()
	}
}

func (r *followers) stopAll() {
	r.mu.Lock()
	all := r.subs
	r.subs = make(map[string]map[int]*Follower)
	r.mu.Unlock()
	for _, m := range all {
		for _, f := range m {
			f.Stop()
		}
	}
}
