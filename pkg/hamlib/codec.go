package hamlib

import (
	"strconv"
	"strings"
)

// Report line prefix that terminates every daemon response.
const ReportPrefix = "RPRT"

// CodeProtocolError is Hamlib's RIG_EPROTO, reported for terminators
// whose code cannot be read.
const CodeProtocolError = -8

// Codec translates between a device state S and a daemon dialect.
type Codec[S any] interface {
	// PollCommands returns the commands of one full poll, in send order.
	PollCommands() []string

	// Decode folds the data lines answering cmd into state.
	// Fields whose lines fail to parse are left unchanged.
	Decode(cmd string, lines []string, state *S)
}

// IsReport reports whether line is a response terminator.
func IsReport(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), ReportPrefix)
}

// ParseReport extracts the status code from an "RPRT <n>" line.
// It also accepts the compact "RPRT<n>" form some builds emit.
// ok is true for every line starting with RPRT; one without a readable
// code yields CodeProtocolError.
func ParseReport(line string) (code int, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, ReportPrefix) {
		return 0, false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(line, ReportPrefix))
	code, err := strconv.Atoi(rest)
	if err != nil {
		return CodeProtocolError, true
	}
	return code, true
}

// line returns the trimmed i-th line, or "" when absent.
func line(lines []string, i int) string {
	if i < 0 || i >= len(lines) {
		return ""
	}
	return strings.TrimSpace(lines[i])
}
