// Package client contains the transport layer of the songbook session client.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface) covering the
//     credential exchange, the identity ("who am I") endpoint and the
//     token-carrying account lifecycle endpoints.
//  2. A concrete HTTP implementation (see HTTPClient). The credential exchange
//     is an OAuth2 password grant performed with golang.org/x/oauth2; every
//     other call is a JSON round trip.
//  3. InspectToken, which reads the subject and expiry of a JWT access token
//     without verifying it, for display purposes only.
//
// # Error Handling
//
// Responses are classified so callers never see raw transport errors:
//   - ErrUnauthorized: 401/403, the token or credentials are not accepted.
//   - ErrUnavailable: transport failure, timeout, or 502/503/504.
//   - *APIError: any other non-2xx response, carrying the backend's detail.
//
// APIError unwraps to ErrUnauthorized or ErrUnavailable when its status code
// belongs to one of those classes, so errors.Is works on every result.
package client
