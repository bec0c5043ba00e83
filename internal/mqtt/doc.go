// Package mqtt carries bus traffic over an MQTT broker. Clients publish
// questions to <prefix>/inbound/<chat_id> and receive replies on
// <prefix>/outbound/<chat_id>.
//
// The transport uses Eclipse Paho v2's [autopaho] package for
// connection management with automatic reconnection. On every
// (re-)connect it publishes a retained "online" status and
// re-subscribes to the inbound filter. A will message flips the status
// topic to "offline" on unexpected disconnects.
package mqtt
