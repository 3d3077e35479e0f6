package worker

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/ufflow/oats/pkg/agent"
	"github.com/ufflow/oats/pkg/models"
)

// Emitter writes investigation events to the worker's stdout as NDJSON,
// one event per line. The job log is the investigation's only durable
// record, so events go out the moment the engine hands them over; nothing
// is buffered across events.
type Emitter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

var _ agent.EventEmitter = (*Emitter)(nil)

// NewEmitter wraps w, normally os.Stdout.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{enc: json.NewEncoder(w)}
}

// Emit serializes one event. The encoder appends the newline, keeping
// every event on its own line even when other writers share the stream
// between calls. A write failure means stdout itself is gone, and with it
// any channel to report the failure on, so the error is dropped.
func (e *Emitter) Emit(event *models.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_ = e.enc.Encode(event)
}
