// Package progress carries per-request pipeline progress from the generation
// task to whoever is watching it, typically a server-sent-events stream.
package progress

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Stage names a pipeline transition as reported to clients.
type Stage string

const (
	StageReceived     Stage = "received"
	StageLLMStart     Stage = "llm_start"
	StageLLMDone      Stage = "llm_done"
	StageCompileStart Stage = "compile_start"
	StageCompilePass  Stage = "compile_pass"
	StageRefineStart  Stage = "refine_start"
	StageRefineDone   Stage = "refine_done"
	StageError        Stage = "error"
	StageDone         Stage = "done"
)

// Terminal reports whether no further events follow this stage.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageError
}

// Event is one progress update.
type Event struct {
	RequestID  string    `json:"requestId"`
	Stage      Stage     `json:"stage"`
	Percent    int       `json:"percent"`
	Message    string    `json:"message"`
	ETASeconds int       `json:"etaSeconds"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher receives progress events. Implementations must not block the
// pipeline.
type Publisher interface {
	Publish(ev Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Event)

func (f PublisherFunc) Publish(ev Event) { f(ev) }

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(Event) {})

// Fanout publishes to every non-nil publisher in order.
func Fanout(pubs ...Publisher) Publisher {
	return PublisherFunc(func(ev Event) {
		for _, p := range pubs {
			if p != nil {
				p.Publish(ev)
			}
		}
	})
}

// WriteSSE writes ev as one server-sent event named "progress".
func WriteSSE(w io.Writer, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode progress event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data)
	return err
}

// WriteSSEComment writes an SSE comment line, used as a keep-alive.
func WriteSSEComment(w io.Writer, text string) error {
	_, err := fmt.Fprintf(w, ": %s\n\n", text)
	return err
}
