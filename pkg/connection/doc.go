// Package connection provides the TCP session to a Hamlib control daemon.
//
// A Session owns one socket to rigctld or rotctld and speaks the
// line-oriented protocol: each command is a single newline-terminated
// line, and every response is a run of lines ending in a report line
//
//	RPRT <code>
//
// A zero code is success. A non-zero code is a rejection by the daemon;
// the connection stays up and the caller gets a *RejectedError. A report
// line without a readable code counts as a protocol error rejection.
//
// # Connection States
//
//	DISCONNECTED -> CONNECTING -> CONNECTED
//	                     |            |
//	                     v            v (read timeout, I/O error)
//	                   ERROR     DISCONNECTED
//
// A Session never retries on its own. Reconnection is the supervisor's job,
// paced by Backoff after a failed connect.
//
// # Reconnection Strategy
//
// Failed connects back off exponentially:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s
//  3. Maximum delay: 30 seconds
//  4. Reset to 1s on successful connect
//
// Jitter spreads out several sessions that lost the same daemon:
//
//	delay = base + random(0, base * 0.25)
package connection
