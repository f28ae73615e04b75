// package devserver is an in-memory backend for local development and
// end-to-end tests.
//
// It speaks the same REST and WebSocket contracts the client expects:
//
//	POST  /api/auth/register         create an unconfirmed account, returns a confirmation token
//	POST  /api/auth/confirm          redeem a confirmation token, signs the user in
//	POST  /api/auth/login            email + password, returns a session
//	POST  /api/auth/refresh          rotates the refresh token (body or HttpOnly cookie)
//	POST  /api/auth/logout           revokes the refresh token and clears the cookie
//	GET   /api/auth/me               current user
//	GET   /api/notifications         paginated list (page, limit, unreadOnly)
//	PATCH /api/notifications/:id/read
//	PATCH /api/notifications/read-all
//	GET   /api/notifications/preferences
//	PUT   /api/notifications/preferences
//	GET   /ws                        WebSocket, bearer authenticated
//
// Two routes exist only for development:
//
//	POST /dev/notifications   create a notification and push it to connected users
//	POST /dev/expire          revoke every access token issued so far
package devserver
