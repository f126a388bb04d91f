package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const (
	busDepth       = 100
	publishTimeout = 100 * time.Millisecond
)

// queue is a bounded channel that drops instead of blocking when the
// consumer stalls longer than publishTimeout.
type queue[T any] struct {
	ch      chan T
	dropped atomic.Uint64
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{ch: make(chan T, busDepth)}
}

func (q *queue[T]) publish(msg T) {
	select {
	case q.ch <- msg:
	default:
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case q.ch <- msg:
		case <-timer.C:
			q.dropped.Add(1)
		}
	}
}

func (q *queue[T]) receive(ctx context.Context) (T, bool) {
	var zero T
	select {
	case msg, ok := <-q.ch:
		if !ok {
			return zero, false
		}
		return msg, true
	case <-ctx.Done():
		return zero, false
	}
}

// MessageBus decouples channels from the turn pipeline: channels publish
// player utterances inbound, the serve loop publishes replies outbound.
type MessageBus struct {
	inbound  *queue[InboundMessage]
	outbound *queue[OutboundMessage]
	closed   bool
	mu       sync.RWMutex
}

func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:  newQueue[InboundMessage](),
		outbound: newQueue[OutboundMessage](),
	}
}

func (mb *MessageBus) PublishInbound(msg InboundMessage) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed {
		return
	}
	mb.inbound.publish(msg)
}

func (mb *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	return mb.inbound.receive(ctx)
}

func (mb *MessageBus) PublishOutbound(msg OutboundMessage) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed {
		return
	}
	mb.outbound.publish(msg)
}

func (mb *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	return mb.outbound.receive(ctx)
}

func (mb *MessageBus) Close() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return
	}
	mb.closed = true
	close(mb.inbound.ch)
	close(mb.outbound.ch)
}

func (mb *MessageBus) DroppedInbound() uint64 {
	return mb.inbound.dropped.Load()
}

func (mb *MessageBus) DroppedOutbound() uint64 {
	return mb.outbound.dropped.Load()
}
