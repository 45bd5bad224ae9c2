// Package auth implements operator authentication for the safety controller.
//
// Bearer tokens are HMAC-signed JWTs carrying the operator subject and role.
// The operator role is required for trigger/reset; viewer suffices for
// status, history and the event stream. When no secret is configured the
// middleware passes requests through (bench mode).
package auth
