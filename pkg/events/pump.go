package events

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/ufflow/oats/pkg/models"
	"github.com/ufflow/oats/pkg/services"
)

// streamRetryInterval is how often the pump retries opening the log
// stream while the worker pod is still scheduling. Variable so tests
// can tighten it.
var streamRetryInterval = 2 * time.Second

// maxLogLineBytes caps one scanned log line. Matches the limit the
// REST replay endpoint applies.
const maxLogLineBytes = 1024 * 1024

// pump tails one investigation's worker logs for one subscriber. The
// job's stdout is replayed from the beginning, so a subscriber that
// attaches late still sees the full history before the live tail.
type pump struct {
	m               *StreamManager
	conn            *Connection
	investigationID string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newPump(m *StreamManager, c *Connection, investigationID string) *pump {
	ctx, cancel := context.WithCancel(c.ctx)
	return &pump{
		m:               m,
		conn:            c,
		investigationID: investigationID,
		ctx:             ctx,
		cancel:          cancel,
		done:            make(chan struct{}),
	}
}

// stop asks the pump to exit. It does not wait: the goroutine may be
// mid-write to the subscriber and will wind down on its own.
func (p *pump) stop() {
	p.cancel()
}

func (p *pump) run() {
	defer close(p.done)
	defer p.m.pumpDone(p.conn, p.investigationID)

	rc, ok := p.openStream()
	if !ok {
		return
	}
	p.drain(rc)
	p.reportOutcome()
}

// openStream opens the job's log stream, retrying while the worker pod
// is still scheduling. Gives up when the subscriber detaches, the
// investigation disappears, or it reached a terminal state with no pod
// left to read from.
func (p *pump) openStream() (io.ReadCloser, bool) {
	for {
		rc, err := p.m.investigations.StreamLogs(p.ctx, p.investigationID, true)
		if err == nil {
			return rc, true
		}
		if p.ctx.Err() != nil {
			return nil, false
		}
		if errors.Is(err, services.ErrNotFound) {
			return nil, false
		}

		inv, getErr := p.m.investigations.Get(p.investigationID)
		if getErr != nil || inv.State.IsTerminal() {
			slog.Debug("No worker logs to stream",
				"investigation_id", p.investigationID, "error", err)
			return nil, false
		}

		select {
		case <-p.ctx.Done():
			return nil, false
		case <-time.After(streamRetryInterval):
		}
	}
}

// drain forwards every event line from the log stream to the
// subscriber until the stream ends or the pump is stopped. Non-event
// lines (worker stderr chatter never appears here, but stdout may carry
// a human summary) are filtered out.
func (p *pump) drain(rc io.ReadCloser) {
	defer rc.Close()

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLogLineBytes)
	for scanner.Scan() {
		if p.ctx.Err() != nil {
			return
		}
		ev, ok := models.ParseEventLine(scanner.Bytes())
		if !ok {
			continue
		}
		p.m.deliver(p.conn, p.investigationID, ev)
	}

	if err := scanner.Err(); err != nil && p.ctx.Err() == nil {
		slog.Warn("Investigation log stream interrupted",
			"investigation_id", p.investigationID, "error", err)
	}
}

// reportOutcome delivers the terminal status frame after the stream
// drained, if the investigation is already terminal. When job status is
// lagging behind the worker's exit, the lifecycle watcher delivers the
// frame instead; deliverTerminal dedupes whichever comes second.
func (p *pump) reportOutcome() {
	if p.ctx.Err() != nil {
		return
	}
	inv, err := p.m.investigations.Get(p.investigationID)
	if err != nil || !inv.State.IsTerminal() {
		return
	}

	detail := inv.Error
	if detail == "" {
		detail = "investigation " + string(inv.State)
	}
	ev := models.NewStatusEvent(inv.State, detail)
	ev.InvestigationID = inv.ID
	ev.JobName = inv.JobName
	p.m.deliverTerminal(p.conn, inv.ID, ev)
}
