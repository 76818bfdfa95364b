package engine

import (
	"github.com/crimson-sun/tribewatch/internal/engine/classifier"
	"github.com/crimson-sun/tribewatch/internal/engine/extractor"
	"github.com/crimson-sun/tribewatch/internal/model"
)

// Engine orchestrates the extract → classify → clean pipeline for one buffer.
type Engine struct {
	classifier *classifier.Classifier
}

// Output is the result of processing one fetched buffer.
type Output struct {
	Extraction extractor.Result
	Events     []model.ClassifiedEvent
}

// Records returns the raw records underlying the matched events, the input
// the dedup stage keys on.
func (o Output) Records() []model.RawRecord {
	out := make([]model.RawRecord, len(o.Events))
	for i, e := range o.Events {
		out[i] = e.Record()
	}
	return out
}

// New creates an Engine around a compiled classifier.
func New(cls *classifier.Classifier) *Engine {
	return &Engine{classifier: cls}
}

// Process decodes buf and keeps the records the classifier matches, in
// buffer order. Unmatched records are dropped.
func (e *Engine) Process(buf []byte) Output {
	res := extractor.Extract(buf)
	out := Output{Extraction: res}
	for _, rec := range res.Records {
		if ev, ok := e.classifier.Event(rec); ok {
			out.Events = append(out.Events, ev)
		}
	}
	return out
}
