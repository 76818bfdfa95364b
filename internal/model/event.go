package model

// ClassifiedEvent is a RawRecord that matched a classification rule.
type ClassifiedEvent struct {
	Category    Category
	Offset      int
	RawText     string // dedup key; exactly as decoded
	CleanedText string // display text sent to notification sinks
}

// Record returns the underlying raw record the event was derived from.
func (e ClassifiedEvent) Record() RawRecord {
	return RawRecord{Offset: e.Offset, Text: e.RawText}
}
