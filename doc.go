// Package tgauth implements the Telegram Mini App authentication protocol
// used by the 3GIS directory: init-data normalization and HMAC verification,
// an atomic user directory upsert, and dual-channel session issuance.
//
// Init data:
//   - ExtractInitData collapses the two wire shapes a Mini App host may
//     deliver (raw query string or a field-keyed object) into one canonical
//     query string. Validator then verifies the HMAC signature chain and the
//     auth_date freshness window before projecting the embedded user JSON.
//
// Sessions:
//   - TokenService mints HS256 JWTs carrying the user id and Telegram id.
//     The HTTP layer delivers the token both as an HTTP-only cookie and in
//     the response body, because Mini App webviews do not reliably persist
//     cookies across reloads.
//
// Client subsystems live in subpackages: detect classifies the hosting
// environment (bridge objects, bounded probe, capability heuristics) and
// client drives the authentication state machine against this server.
package tgauth
