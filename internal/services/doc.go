// Package services talks to the video platform's REST backend.
//
// # HTTP Client
//
// [Client] sends JSON requests through a [Middleware] pipeline. The built-in
// stages, outermost first, are: the 401 retry stage, request ID, logging,
// default headers and the bearer stage that reads the access token from the
// [session.Store].
//
// # Token Refresh
//
// A 401 on a request that is not the refresh endpoint and has not already been
// replayed starts a refresh cycle. Only one cycle runs at a time; requests that
// fail while it is in flight are queued and, once it ends, are either all
// replayed with the new token or all rejected with the refresh error. A request
// whose token was already replaced by the time it failed is replayed with the
// current token without a new cycle.
//
// On refresh failure the session is cleared, the auth-status cookie is removed
// and the [Navigator], when set, is sent to the login route.
//
// # Services
//
//   - [AuthService] : login, registration confirmation, logout, current user
//   - [NotificationService] : paginated list, optimistic mark-as-read, preferences, unread priming
//
// # Error Handling
//
// Non-2xx responses are returned as [*APIError], which matches:
//   - [shared.ErrAPIRequest] : any status
//   - [shared.ErrUnauthorized] : 401
//   - [shared.ErrServiceUnavailable] : 502, 503, 504
//
// A failed refresh wraps [shared.ErrRefreshFailed] together with the refresh
// response's error. Transport failures are returned unchanged.
package services
