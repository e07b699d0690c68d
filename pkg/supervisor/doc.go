// Package supervisor keeps one Hamlib daemon session alive and polled.
//
// A Supervisor is generic over the device state S. The radio and rotator
// supervisors differ only in their codec, tracker and state event:
//
//	radio := supervisor.New(supervisor.RadioConfig(...))
//	rotator := supervisor.New(supervisor.RotatorConfig(...))
//
// Every cycle the supervisor re-reads the settings and then:
//
//  1. disabled: disconnect and wait DisabledInterval
//  2. endpoint changed: tear the session down and reconnect at once
//  3. not connected: connect, seed a fresh tracker with a full poll and
//     report the state; after a failed connect the next attempt waits for
//     the backoff delay, while settings are still re-read every
//     DisabledInterval
//  4. connected: poll and report the state if the tracker saw a change
//
// A poll that fails with an I/O error leaves the session disconnected and
// the next cycle reconnects. One goroutine owns the socket; external
// commands reach it through Submit.
package supervisor
