// Package platform is the REST-side integration with the cloud IoT
// platform that fronts the power plugs.
//
// It covers three concerns:
//
//   - Credential handling: tokens are JWTs; CheckToken catches an expired
//     credential locally and VerifyToken confirms the session with the
//     platform before anything else starts.
//
//   - Discovery: ListDevices resolves the managed device set through a
//     group -> tenant -> static fallback chain, so a half-configured
//     deployment still comes up with at least one device.
//
//   - Command delivery: Dispatcher pushes POWER on/off commands through
//     the platform's one-way RPC endpoint. Timeouts are retried with
//     exponential backoff inside a fixed attempt budget; auth failures
//     and hard errors are not, since retrying them cannot help.
//
// Real-time state flows over the websocket ingestion path instead; this
// package only does request/response work.
package platform
