package model

// RawRecord is one length-prefixed string decoded from a state file buffer.
type RawRecord struct {
	Offset int    // byte offset of the record's length prefix within the buffer
	Text   string // decoded text, terminator removed
}
