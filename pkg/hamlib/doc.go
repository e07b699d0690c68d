// Package hamlib encodes and decodes the text protocols spoken by Hamlib's
// rigctld and rotctld daemons.
//
// Commands are single ASCII lines terminated by a newline. A response is
// zero or more data lines followed by a report line:
//
//	RPRT <code>
//
// A code of 0 means success; any other value is the negated Hamlib error
// number. The codecs in this package only translate; the socket exchange
// itself belongs to package connection.
//
// # Radio dialect (rigctld)
//
//	f  -> frequency in Hz
//	m  -> mode, passband in Hz
//	t  -> PTT flag (nonzero = transmitting)
//
// # Rotator dialect (rotctld)
//
//	p            -> azimuth, elevation (elevation ignored)
//	P <az> 0     -> set position, azimuth only
//	S            -> stop
//
// Decoding is lenient. A line that does not parse leaves the matching
// field untouched so a single malformed response never fails a poll.
package hamlib
