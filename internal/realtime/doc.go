// Package realtime keeps one WebSocket connection open per authenticated session.
//
// The [Manager] subscribes to the session store. When the session becomes
// authenticated it dials the channel with the access token on the handshake;
// when it stops being authenticated it closes the connection and resets the
// notification inbox. A guard flag ensures repeated synchronisation never opens
// a second connection.
//
// Inbound frames are JSON envelopes:
//
//	{"event": "notification:new", "data": {...}}
//
// A new notification is added to the inbox and the paginated notification
// caches are invalidated, so the next list read goes back to the server.
package realtime
