// Package models defines the wire and domain types shared by the session, HTTP and real-time layers.
//
// The package contains two groups of types:
//
// 1. Identity and credentials
//   - [User] : account identity with [Role] and verification flag
//   - [LoginResult] : what login and registration confirmation return
//   - [TokenPair] : what the refresh endpoint returns
//
// 2. Notifications
//   - [Notification] : read-optimized projection of a backend notification
//   - [NotificationPage] : one page of the paginated list endpoint
//   - [Preferences] : per-channel and per-type delivery toggles
//
// Validation uses go-playground/validator struct tags through [Validate].
package models
