// Package lightning implements the HTTP protocol spoken by the Fire TV
// remote-control service.
//
// Each device exposes two endpoints:
//   - a control API on https://{ip}:8080 with a self-signed certificate,
//     authenticated by an X-Api-Key header plus a per-pairing
//     X-Client-Token header
//   - a DIAL wake endpoint on http://{ip}:8009/apps/FireTVRemote used to
//     wake a sleeping device and to probe reachability
//
// Certificate verification is disabled only on the transport that talks to
// the device; nothing else in the process is affected.
//
// Pairing is a two-step exchange: DisplayPIN makes the device show a PIN
// on screen, VerifyPIN submits it and receives the client token used on
// every subsequent command.
package lightning
