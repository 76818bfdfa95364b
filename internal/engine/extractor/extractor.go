// Package extractor decodes the length-prefixed string table embedded in a
// tribe state file.
//
// The buffer is a concatenation of records, each a 4-byte little-endian
// signed length N followed by N bytes of UTF-8 text whose final byte is a
// terminator. Extraction never fails: a frame that cannot be read ends the
// scan and every record decoded before it is returned.
package extractor

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/crimson-sun/tribewatch/internal/model"
)

const prefixSize = 4

// MalformedFrame describes the frame that stopped extraction.
type MalformedFrame struct {
	Offset    int   // offset of the offending length prefix
	Declared  int32 // length the prefix declared
	Remaining int   // bytes left after the prefix
}

func (m *MalformedFrame) Error() string {
	return fmt.Sprintf("malformed frame at offset %d: declared length %d, %d bytes remaining",
		m.Offset, m.Declared, m.Remaining)
}

// Result is the outcome of extracting one buffer.
type Result struct {
	Records   []model.RawRecord
	Consumed  int             // bytes covered by well-formed records
	Residual  int             // bytes left unread
	Malformed *MalformedFrame // nil unless a bad frame ended the scan
}

// Complete reports whether the whole buffer was decoded.
func (r Result) Complete() bool {
	return r.Malformed == nil && r.Residual == 0
}

// Extract scans buf from offset 0 and decodes records until the buffer is
// exhausted, fewer than four bytes remain, or a malformed frame is met.
// buf is not modified.
func Extract(buf []byte) Result {
	var res Result
	pos := 0
	for len(buf)-pos >= prefixSize {
		n := int32(binary.LittleEndian.Uint32(buf[pos:]))
		remaining := len(buf) - pos - prefixSize
		if n <= 0 || int64(n) > int64(remaining) {
			res.Malformed = &MalformedFrame{Offset: pos, Declared: n, Remaining: remaining}
			break
		}

		payload := buf[pos+prefixSize : pos+prefixSize+int(n)]
		res.Records = append(res.Records, model.RawRecord{
			Offset: pos,
			Text:   decode(payload[:len(payload)-1]),
		})
		pos += prefixSize + int(n)
	}
	res.Consumed = pos
	res.Residual = len(buf) - pos
	return res
}

// Texts returns the decoded strings of buf in order.
func Texts(buf []byte) []string {
	res := Extract(buf)
	out := make([]string, len(res.Records))
	for i, r := range res.Records {
		out[i] = r.Text
	}
	return out
}

// decode converts payload bytes to a string, replacing invalid UTF-8.
func decode(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}
