package eventbus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed возвращается при публикации в закрытую шину
var ErrClosed = errors.New("event bus is closed")

// memoryBus: шина в памяти процесса. Каждый подписчик получает события
// в порядке публикации из своей очереди.
type memoryBus struct {
	mu          sync.RWMutex
	subscribers map[int]*subscriber
	nextID      int
	closed      bool
	capacity    int

	published atomic.Uint64
	consumed  atomic.Uint64
	dropped   atomic.Uint64
}

type subscriber struct {
	filter  Filter
	handler Handler
	queue   chan *Envelope
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewMemoryBus создаёт in-memory шину; capacity: размер очереди каждого подписчика.
func NewMemoryBus(capacity int) EventBus {
	if capacity <= 0 {
		capacity = 1
	}
	return &memoryBus{
		subscribers: make(map[int]*subscriber),
		capacity:    capacity,
	}
}

// Publish раздаёт событие подписчикам. Низкоприоритетные (<5) события
// отбрасываются при полной очереди, остальные ждут места или отмены ctx.
func (mb *memoryBus) Publish(ctx context.Context, ev *Envelope) error {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed {
		return ErrClosed
	}
	mb.published.Add(1)

	for _, sub := range mb.subscribers {
		if !matchFilter(ev, sub.filter) {
			continue
		}
		select {
		case sub.queue <- ev:
			continue
		default:
		}
		if ev.Priority < 5 {
			mb.dropped.Add(1)
			continue
		}
		select {
		case sub.queue <- ev:
		case <-sub.ctx.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (mb *memoryBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return nil, ErrClosed
	}

	id := mb.nextID
	mb.nextID++
	cctx, cancel := context.WithCancel(ctx)
	sub := &subscriber{
		filter:  f,
		handler: h,
		queue:   make(chan *Envelope, mb.capacity),
		ctx:     cctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	mb.subscribers[id] = sub
	go mb.dispatch(sub)

	return &memSub{bus: mb, id: id}, nil
}

// dispatch доставляет события одного подписчика до отписки
func (mb *memoryBus) dispatch(sub *subscriber) {
	defer close(sub.done)
	for {
		select {
		case <-sub.ctx.Done():
			return
		case ev, ok := <-sub.queue:
			if !ok {
				return
			}
			sub.handler(sub.ctx, ev)
			mb.consumed.Add(1)
		}
	}
}

func (mb *memoryBus) Metrics() Stats {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	s := Stats{
		Published: mb.published.Load(),
		Consumed:  mb.consumed.Load(),
		Dropped:   mb.dropped.Load(),
	}
	for _, sub := range mb.subscribers {
		s.InFlight += len(sub.queue)
	}
	return s
}

// Close доставляет уже поставленные в очередь события и останавливает подписчиков
func (mb *memoryBus) Close() error {
	mb.mu.Lock()
	if mb.closed {
		mb.mu.Unlock()
		return nil
	}
	mb.closed = true
	subs := mb.subscribers
	mb.subscribers = make(map[int]*subscriber)
	mb.mu.Unlock()

	for _, sub := range subs {
		close(sub.queue)
		<-sub.done
		sub.cancel()
	}
	return nil
}

type memSub struct {
	bus *memoryBus
	id  int
}

func (s *memSub) Unsubscribe() {
	s.bus.mu.Lock()
	sub, ok := s.bus.subscribers[s.id]
	delete(s.bus.subscribers, s.id)
	s.bus.mu.Unlock()
	if ok {
		sub.cancel()
		<-sub.done
	}
}
