// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package fjage

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// TraceKind names the stage a TraceEvent was captured at.
type TraceKind string

const (
	// TraceTx is an outbound line.
	TraceTx TraceKind = "tx"
	// TraceRx is an inbound line, before parsing.
	TraceRx TraceKind = "rx"
	// TraceRxParsed is an inbound line, parsed into an Envelope.
	TraceRxParsed TraceKind = "rxp"
	// TraceRxMessage is an inbound Message, before checking its recipient.
	TraceRxMessage TraceKind = "rxmsg"
	// TraceTxMessage is an outbound Message.
	TraceTxMessage TraceKind = "txmsg"
)

// TraceEvent describes the wire traffic of a Gateway. Depending on its Kind,
// one of Raw, Envelope or Message is set.
type TraceEvent struct {
	Kind     TraceKind
	Raw      string
	Envelope *Envelope
	Message  *Message
}

// Events is a publish/subscribe channel for one category of events.
//
// Published values are queued and handed to the subscribers by a delivery
// goroutine, never on the publishing goroutine. Thus, subscribers might call
// back into the Gateway, e.g., to send a Request. Values are delivered in
// publishing order; a panicking subscriber is logged and skipped.
type Events[T any] struct {
	name string

	mutex      sync.Mutex
	subs       []eventSub[T]
	next       uint64
	queue      []T
	delivering bool
}

type eventSub[T any] struct {
	id uint64
	fn func(T)
}

func newEvents[T any](name string) *Events[T] {
	return &Events[T]{name: name}
}

// Subscribe fn to all future events. The returned function cancels the
// subscription.
func (e *Events[T]) Subscribe(fn func(T)) (cancel func()) {
	e.mutex.Lock()
	id := e.next
	e.next++
	e.subs = append(e.subs, eventSub[T]{id: id, fn: fn})
	e.mutex.Unlock()

	return func() {
		e.mutex.Lock()
		defer e.mutex.Unlock()

		for i, s := range e.subs {
			if s.id == id {
				e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
				return
			}
		}
	}
}

// Chan subscribes a buffered channel. Events are dropped while the channel is
// full. The cancel function ends the subscription; the channel is not closed.
func (e *Events[T]) Chan(size int) (ch <-chan T, cancel func()) {
	c := make(chan T, size)
	cancel = e.Subscribe(func(v T) {
		select {
		case c <- v:
		default:
			log.WithField("events", e.name).Debug("Dropping event for a full channel")
		}
	})
	ch = c
	return
}

// publish queues v and starts a delivery goroutine, unless one is running.
func (e *Events[T]) publish(v T) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if len(e.subs) == 0 {
		return
	}

	e.queue = append(e.queue, v)
	if !e.delivering {
		e.delivering = true
		go e.deliver()
	}
}

// deliver the queued values until the queue is drained.
func (e *Events[T]) deliver() {
	for {
		e.mutex.Lock()
		if len(e.queue) == 0 {
			e.queue = nil
			e.delivering = false
			e.mutex.Unlock()
			return
		}

		v := e.queue[0]
		e.queue = e.queue[1:]
		subs := e.subs
		e.mutex.Unlock()

		for _, s := range subs {
			e.invoke(s, v)
		}
	}
}

func (e *Events[T]) invoke(s eventSub[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"events": e.name,
				"panic":  r,
			}).Warn("Event subscriber panicked")
		}
	}()
	s.fn(v)
}

// clear all subscriptions and drop undelivered values.
func (e *Events[T]) clear() {
	e.mutex.Lock()
	e.subs = nil
	e.queue = nil
	e.mutex.Unlock()
}
