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

package gateway

// TrackType tags why a gateway registered an inner-transport request id
// in request_track: either it originated locally and nobody above cares
// about the outcome, or it was delegated down from an upper-level
// SendReliable and its outcome must be re-reported under the upper
// request id. This is a closed two-variant sum, not an open registry
// (design note 9a's spirit applied here too: no runtime type erasure
// where a closed set suffices).
type TrackType interface {
	isTrackType()
}

// FireAndForget means the outcome of the inner request is swallowed;
// nobody above is waiting for it (e.g. a PeerAddress advertisement).
type FireAndForget struct{}

func (FireAndForget) isTrackType() {}

// DelegateLower means the outcome of the inner request must be
// re-emitted to transport_outbox under UpperRequestID.
type DelegateLower struct {
	UpperRequestID string
}

func (DelegateLower) isTrackType() {}
