/*
Package wire implements the frame transport for the NUL-delimited line
protocol both sub-protocols speak.

This file holds the pure codec: encoding outgoing field lists into
terminated frames and carving logical records out of a receive buffer.
Keeping the codec free of sockets makes the framing rules unit-testable.
*/
package wire

import (
	"bytes"
	"strings"
)

const (
	// DefaultTerminator ends ordinary outgoing frames.
	DefaultTerminator = "\r\n\x00"

	// BareTerminator ends the handshake frames that the server expects
	// without a trailing CRLF.
	BareTerminator = "\x00"
)

// Record is one decoded logical record: the leading command field and the
// remaining colon-separated args. Args are not re-split; handlers that
// carry colon-bearing payloads rejoin the tail themselves.
type Record struct {
	Command string
	Args    []string
}

// EncodeFrame joins fields with ':' and appends the terminator.
func EncodeFrame(fields []string, terminator string) []byte {
	return []byte(strings.Join(fields, ":") + terminator)
}

// NextRecord carves the first complete record out of buf. Leading NUL bytes
// are dropped and bare CRLF records (empty keepalive echoes) are skipped.
// When no complete record exists yet, ok is false and rest holds the
// unconsumed tail.
func NextRecord(buf []byte) (rec Record, rest []byte, ok bool) {
	for len(buf) > 0 && buf[0] == 0 {
		buf = buf[1:]
	}

	for {
		i := bytes.IndexByte(buf, 0)
		if i < 0 {
			return Record{}, buf, false
		}

		data := buf[:i]
		buf = buf[i+1:]

		if bytes.Equal(data, []byte("\r\n")) {
			continue
		}

		return parseRecord(data), buf, true
	}
}

// parseRecord trims the surrounding CRLF and splits the record into its
// colon-separated fields.
func parseRecord(data []byte) Record {
	text := strings.Trim(string(data), "\r\n")
	fields := strings.Split(text, ":")
	return Record{Command: fields[0], Args: fields[1:]}
}
