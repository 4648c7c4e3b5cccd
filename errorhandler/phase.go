package errorhandler

import (
	"context"
)

// ErrorPhase indicates which inspection step produced an error
type ErrorPhase int

const (
	PhaseUnknown     ErrorPhase = iota // zero value - uninitialized phase
	PhaseListOffsets                   // error while listing the partition end offset
	PhaseFetch                         // error while reading the record at the latest offset
)

func (p ErrorPhase) String() string {
	switch p {
	case PhaseListOffsets:
		return "list_offsets"
	case PhaseFetch:
		return "fetch"
	default:
		return "unknown"
	}
}

var _ Handler = (*PhaseRouter)(nil)

type PhaseRouter struct {
	handler            Handler
	listOffsetsHandler Handler
	fetchHandler       Handler
}

// NewPhaseRouter routes errors to a handler per phase.
// A nil phase handler falls back to handler; a nil handler defaults to SilentFail.
func NewPhaseRouter(handler Handler, listOffsetsHandler Handler, fetchHandler Handler) *PhaseRouter {
	if handler == nil {
		handler = SilentFail()
	}

	return &PhaseRouter{
		handler:            handler,
		listOffsetsHandler: listOffsetsHandler,
		fetchHandler:       fetchHandler,
	}
}

func (r *PhaseRouter) Handle(ctx context.Context, ec ErrorContext) Action {
	switch ec.Phase {
	case PhaseListOffsets:
		if r.listOffsetsHandler != nil {
			return r.listOffsetsHandler.Handle(ctx, ec)
		}
	case PhaseFetch:
		if r.fetchHandler != nil {
			return r.fetchHandler.Handle(ctx, ec)
		}
	case PhaseUnknown:
	default:
	}

	return r.handler.Handle(ctx, ec)
}
