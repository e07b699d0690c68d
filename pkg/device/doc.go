// Package device holds the live state model for Hamlib-controlled devices.
//
// Two device kinds exist: radios reached through rigctld and antenna
// rotators reached through rotctld. Each kind has a state shape and a
// tracker that decides whether a freshly polled sample is materially
// different from the previous observation.
//
// # Radios
//
// A radio change is any difference in frequency, mode or transmit flag.
// Passband changes alone are recorded but never reported. The band is
// derived from the frequency and is never stored independently.
//
// # Rotators
//
// Azimuths are normalized into [0, 360). A rotator is considered moving
// when its azimuth moved by more than 0.5 degrees since the previous
// poll. A pending target is cleared once the current azimuth is within
// 2 degrees of it, which also forces the moving flag off.
//
// Trackers are not safe for concurrent use. Each one is owned by the
// goroutine that polls its session and is recreated on every reconnect.
package device
