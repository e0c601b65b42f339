// Package device defines the Fire TV device registry: the Device type, its
// lifecycle states, validation rules and PostgreSQL persistence.
//
// A device moves through a simple lifecycle:
//
//	offline -> pairing -> online
//	              |
//	              v
//	           (reset) -> offline
//
// Pairing state lives on the device row itself: a short-lived PIN with an
// expiry while pairing is in progress, and a client token once paired. The
// token is the device's only credential; clearing it un-pairs the device.
//
// All persistence goes through the Repository interface so handlers and the
// command dispatcher can be tested against fakes.
package device
