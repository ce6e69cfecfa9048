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

package transport

// Event is the closed set of notifications a Transport can emit from
// Process(). The unexported marker method makes the set closed (mirrors
// the Rust TransportEvent enum this is grounded on).
type Event interface {
	isEvent()
}

// ConnectResultEvent reports the outcome of an outgoing ConnectCmd.
// RequestID echoes the ConnectCmd's RequestID, if any was set.
type ConnectResultEvent struct {
	ID        ConnectionID
	URI       URI
	RequestID string
}

func (ConnectResultEvent) isEvent() {}

// IncomingConnectionEstablishedEvent reports a new inbound connection.
type IncomingConnectionEstablishedEvent struct {
	ID ConnectionID
}

func (IncomingConnectionEstablishedEvent) isEvent() {}

// ReceivedDataEvent reports payload bytes received on a connection.
type ReceivedDataEvent struct {
	ID      ConnectionID
	Payload []byte
}

func (ReceivedDataEvent) isEvent() {}

// ConnectionClosedEvent reports that a connection is no longer open,
// whether closed locally, closed by the peer, or dropped.
type ConnectionClosedEvent struct {
	ID ConnectionID
}

func (ConnectionClosedEvent) isEvent() {}

// ErrorOccurredEvent reports a connection-level failure. The connection
// is considered closed once this event is emitted.
type ErrorOccurredEvent struct {
	ID  ConnectionID
	Err error
}

func (ErrorOccurredEvent) isEvent() {}

// SuccessResultEvent reports that the reliable send tracked under
// RequestID completed successfully.
type SuccessResultEvent struct {
	RequestID string
}

func (SuccessResultEvent) isEvent() {}

// FailureResultEvent reports that the reliable send tracked under
// RequestID could not be completed before its deadline.
type FailureResultEvent struct {
	RequestID string
	Err       error
}

func (FailureResultEvent) isEvent() {}
