// Package mqtt wraps paho.mqtt.golang for the Fire TV gateway.
//
// It provides connection management with a Last Will and Testament on the
// gateway status topic, automatic reconnection with tracked re-subscription,
// publish/subscribe helpers with timeouts, and topic builders for the
// gateway's hierarchy (device state and availability, button command topics,
// Home Assistant discovery).
package mqtt
