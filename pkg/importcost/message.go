package importcost

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event names the variant of a Message.
type Event string

const (
	// EventDone carries the sized imports.
	EventDone Event = "done"
	// EventError carries a failure.
	EventError Event = "error"
)

// ErrorKind groups failures by where they happened.
type ErrorKind string

// Error kinds reported in the "kind" field of an error message.
const (
	KindArgument   ErrorKind = "argument"
	KindInput      ErrorKind = "input"
	KindEngine     ErrorKind = "engine"
	KindEstimation ErrorKind = "estimation"
	KindInternal   ErrorKind = "internal"
)

// ErrorPayload is the JSON rendering of an error.
type ErrorPayload struct {
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind"`
	File    string    `json:"file,omitempty"`
}

// Message is the single value a run writes to stdout.
type Message struct {
	Event Event
	Data  []Record
	Error *ErrorPayload
}

// DoneMessage builds a successful result message.
func DoneMessage(records []Record) Message {
	return Message{Event: EventDone, Data: records}
}

// ErrorMessage builds an error message for err.
func ErrorMessage(err error, kind ErrorKind, file string) Message {
	return Message{
		Event: EventError,
		Error: &ErrorPayload{
			Message: err.Error(),
			Kind:    kind,
			File:    file,
		},
	}
}

type doneWire struct {
	Event Event    `json:"event"`
	Data  []Record `json:"data"`
}

type errorWire struct {
	Event Event         `json:"event"`
	Error *ErrorPayload `json:"error"`
}

// MarshalJSON writes only the fields of the message's variant.
func (m Message) MarshalJSON() ([]byte, error) {
	switch m.Event {
	case EventDone:
		data := m.Data
		if data == nil {
			data = []Record{}
		}

		return json.Marshal(doneWire{Event: m.Event, Data: data})
	case EventError:
		payload := m.Error
		if payload == nil {
			payload = &ErrorPayload{Kind: KindInternal}
		}

		return json.Marshal(errorWire{Event: m.Event, Error: payload})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, m.Event)
	}
}

// kindOf maps a failure that escaped the run to its error kind.
func kindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrMissingFilePath), errors.Is(err, ErrInvalidArgs):
		return KindArgument
	case errors.Is(err, ErrReadInput):
		return KindInput
	case errors.Is(err, ErrEngineInit):
		return KindEngine
	default:
		return KindInternal
	}
}
