// Package testdata holds a labelled corpus of tribe log lines and helpers
// for building framed state-file buffers in tests.
package testdata

import (
	_ "embed"
	"encoding/binary"
	"encoding/json"
	"fmt"
)

//go:embed corpus.json
var corpusJSON []byte

// CorpusEntry is a labelled tribe log line for classification validation.
type CorpusEntry struct {
	Raw              string `json:"raw"`
	ExpectedCategory string `json:"expected_category"` // "" when the line is not an event
	ExpectedClean    string `json:"expected_clean"`
	Description      string `json:"description"`
}

// LoadCorpus parses the embedded corpus.json and returns all entries.
func LoadCorpus() ([]CorpusEntry, error) {
	var entries []CorpusEntry
	if err := json.Unmarshal(corpusJSON, &entries); err != nil {
		return nil, fmt.Errorf("parse corpus.json: %w", err)
	}
	return entries, nil
}

// Frame encodes texts as consecutive length-prefixed records with a NUL
// terminator, the layout found in tribe state files.
func Frame(texts ...string) []byte {
	var buf []byte
	for _, t := range texts {
		buf = AppendFrame(buf, []byte(t))
	}
	return buf
}

// AppendFrame appends one record holding payload plus terminator to buf.
func AppendFrame(buf, payload []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(payload)+1))
	buf = append(buf, payload...)
	return append(buf, 0)
}

// AppendPrefix appends a bare length prefix with no payload, used to build
// truncated or corrupt frames.
func AppendPrefix(buf []byte, n int32) []byte {
	return binary.LittleEndian.AppendUint32(buf, uint32(n))
}
