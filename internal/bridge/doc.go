// Package bridge connects the command dispatcher to the MQTT broker.
//
// It holds one long-lived broker client, subscribes to a command topic per
// known device, translates Home Assistant button presses and text input into
// normalized commands, and publishes device state, availability and Home
// Assistant discovery documents.
//
// Message handlers run on the broker library's goroutines, so they only
// parse and enqueue; command execution and the publishes that follow happen
// on the bridge's own workers.
package bridge
