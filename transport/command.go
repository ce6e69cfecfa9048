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

// Command is the closed set of requests a caller can Post to a
// Transport. The unexported marker method makes the set closed: only
// this package can mint new variants (mirrors the Rust TransportCommand
// enum this is grounded on).
type Command interface {
	isCommand()
}

// ConnectCmd asks the transport to open an outgoing connection. If
// RequestID is non-empty, the resulting ConnectResultEvent carries it,
// letting the caller correlate the reply.
type ConnectCmd struct {
	URI       URI
	RequestID string
}

func (ConnectCmd) isCommand() {}

// SendReliableCmd asks the transport to deliver Data.Payload to every id
// in Data.IDList, retrying until delivered or until the reliable-send
// deadline elapses (spec §4.F).
type SendReliableCmd struct {
	Data SendData
}

func (SendReliableCmd) isCommand() {}

// SendAllCmd asks the transport to deliver payload to every open
// connection, best-effort. Whether delivery is retried is up to the
// implementation: mocknet does not retry, while a Gateway sends it
// through its reliable-send workflow.
type SendAllCmd struct {
	Payload []byte
}

func (SendAllCmd) isCommand() {}

// CloseCmd asks the transport to close one connection.
type CloseCmd struct {
	ID ConnectionID
}

func (CloseCmd) isCommand() {}

// CloseAllCmd asks the transport to close every open connection.
type CloseAllCmd struct{}

func (CloseAllCmd) isCommand() {}

// BindCmd asks the transport to open a local listening address.
type BindCmd struct {
	URI URI
}

func (BindCmd) isCommand() {}
