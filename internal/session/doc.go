// Package session holds the authenticated identity and token material for the process.
//
// A single [Store] is constructed at startup and injected into every consumer. It is
// the only component with durable state: every mutation of a persisted field is
// written through a [Storage] as a [Snapshot], and [Store.Hydrate] restores it once
// before any authenticated request is issued.
//
// The [Serialize] and [Deserialize] functions form the boundary between the
// in-memory [State] and the durable record. The transient IsRefreshing flag never
// crosses that boundary.
//
// The store implements [golang.org/x/oauth2.TokenSource] so HTTP and WebSocket
// transports can attach credentials without knowing about the store's internals.
package session
