// This file is part of meshnet, a peer-to-peer agent runtime core.
//
// meshnet is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// meshnet is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// SPDX-License-Identifier: AGPL3.0-or-later

// Package tracker implements the generic request-tracking / callback
// bookmark facility of spec component A: mint a request id, remember a
// callback and a deadline against it, and dispatch the callback exactly
// once on response or on timeout.
package tracker

import (
	"fmt"
	"time"

	"meshnet/clock"
)

// CallbackKind tags whether a callback fired because a response arrived
// or because the bookmark's deadline elapsed.
type CallbackKind int

const (
	// Response means Handle was called with matching data before expiry.
	Response CallbackKind = iota
	// Timeout means Process observed the entry's deadline had passed.
	Timeout
)

// CallbackData is the payload handed to a callback: an opaque response
// value for Response, nil for Timeout.
type CallbackData struct {
	Kind CallbackKind
	Data any
}

// Callback is invoked exactly once per bookmarked request, either with a
// Response or with a Timeout. H is the host-state type the tracker's
// owner narrows the callback to — a compile-time replacement for the
// runtime downcast the original design used (design note 9a).
type Callback[H any] func(host H, context any, data CallbackData) error

type entry[H any] struct {
	requestID string
	expiresAt uint64
	context   any
	cb        Callback[H]
}

// Tracker maps request ids to pending callback + deadline for a single
// host type H. A tracker instance is owned exclusively by one component
// (a Gateway or a DHT); it is never shared across components.
type Tracker[H any] struct {
	prefix  string
	clock   *clock.Clock
	counter uint64
	pending map[string]*entry[H]
}

// New creates a tracker whose minted request ids are prefixed with
// prefix (e.g. "net" or "space:chat.alice"), using clk for deadlines.
func New[H any](prefix string, clk *clock.Clock) *Tracker[H] {
	return &Tracker[H]{
		prefix:  prefix,
		clock:   clk,
		pending: make(map[string]*entry[H]),
	}
}

// Bookmark mints a fresh request id, records the callback, context and
// deadline, and returns the request id for the caller to attach to its
// outgoing request.
func (t *Tracker[H]) Bookmark(timeout time.Duration, context any, cb Callback[H]) string {
	t.counter++
	requestID := fmt.Sprintf("%s.%d", t.prefix, t.counter)
	t.pending[requestID] = &entry[H]{
		requestID: requestID,
		expiresAt: t.clock.Deadline(timeout),
		context:   context,
		cb:        cb,
	}
	return requestID
}

// Handle removes the bookmark for requestID, if any, and invokes its
// callback with a Response. A requestID with no matching bookmark is a
// silent no-op — it is a late response for an entry already handled or
// already expired.
func (t *Tracker[H]) Handle(requestID string, host H, data any) error {
	e, ok := t.pending[requestID]
	if !ok {
		return nil
	}
	delete(t.pending, requestID)
	return e.cb(host, e.context, CallbackData{Kind: Response, Data: data})
}

// Process scans for bookmarks whose deadline has passed, removes each,
// and invokes its callback with Timeout. All expired entries are drained
// in one pass even if a callback returns an error; the first error
// encountered is the one returned to the caller (spec §4.A: "subsequent
// entries in a single process pass are still drained before returning").
func (t *Tracker[H]) Process(host H) error {
	now := t.clock.SinceEpochMs()
	var expired []string
	for id, e := range t.pending {
		if e.expiresAt < now {
			expired = append(expired, id)
		}
	}
	var firstErr error
	for _, id := range expired {
		e, ok := t.pending[id]
		if !ok {
			continue
		}
		delete(t.pending, id)
		if err := e.cb(host, e.context, CallbackData{Kind: Timeout}); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Len returns the number of bookmarks still pending. Exposed for tests.
func (t *Tracker[H]) Len() int {
	return len(t.pending)
}
