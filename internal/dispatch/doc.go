// Package dispatch routes normalized commands to devices.
//
// The Dispatcher is the single choke point between both transports (REST
// and MQTT) and the protocol client: it resolves the device, gets or
// creates a cached client for it, applies the wake policy, executes the
// command and records the outcome to command history.
//
// Commands are plain strings with a parameter map, so both transports
// speak the same vocabulary:
//
//	navigate            {"direction": "up"} or {"action": "home"}
//	media_*             play, pause, stop, next/previous track
//	volume_up/down/mute sent as navigation actions
//	turn_on / turn_off  wake poke / sleep
//	launch_app          {"package": ...} or {"source": "Netflix"}
//	send_text           {"text": ...}
//
// Every command except turn_on runs behind an awake check: if the control
// API is not answering, the device is woken, given a settle period, and
// rechecked once. Still-asleep devices fail the command rather than hang it.
package dispatch
