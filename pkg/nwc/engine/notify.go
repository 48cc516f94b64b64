package engine

import (
	"sync"

	"github.com/lnwallet-oss/nwcclient/pkg/nwc/types"
)

const notificationCapacity = 64

// Pipeline fans out notifications to every currently-subscribed
// listener. Each listener gets its own bounded channel; a slow
// listener drops its oldest unread notification rather than blocking
// the router.
type Pipeline struct {
	mu        sync.Mutex
	listeners map[int]chan types.Notification
	nextID    int
}

// NewPipeline constructs an empty notification pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{listeners: make(map[int]chan types.Notification)}
}

// Subscription is a live notification feed. Close stops delivery and
// releases the underlying channel.
type Subscription struct {
	id     int
	ch     chan types.Notification
	pipe   *Pipeline
	closed bool
}

// Notifications returns the channel to receive on.
func (s *Subscription) Notifications() <-chan types.Notification { return s.ch }

// Close unregisters the subscription.
func (s *Subscription) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.pipe.unsubscribe(s.id)
}

// Subscribe registers a new listener.
func (p *Pipeline) Subscribe() *Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	ch := make(chan types.Notification, notificationCapacity)
	p.listeners[id] = ch
	return &Subscription{id: id, ch: ch, pipe: p}
}

func (p *Pipeline) unsubscribe(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ch, ok := p.listeners[id]; ok {
		delete(p.listeners, id)
		close(ch)
	}
}

// Publish delivers n to every subscribed listener, dropping that
// listener's oldest buffered notification if its channel is full.
func (p *Pipeline) Publish(n types.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.listeners {
		select {
		case ch <- n:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- n:
			default:
			}
		}
	}
}

// Close tears down every subscription.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, ch := range p.listeners {
		delete(p.listeners, id)
		close(ch)
	}
}
