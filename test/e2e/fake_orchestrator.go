package e2e

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/ufflow/oats/pkg/orchestrator"
	"github.com/ufflow/oats/pkg/services"
)

// JobScript describes what one fake worker job does: the stdout lines it
// emits, how fast it emits them, and how the job ends.
type JobScript struct {
	// Lines go to the job's stdout in order, one per log line. Use the
	// line builders in helpers.go for well-formed events.
	Lines []string

	// LineDelay paces the emissions. Zero emits everything immediately.
	LineDelay time.Duration

	// Phase is the job's terminal phase after all lines are out. The
	// zero value means succeeded.
	Phase orchestrator.JobPhase

	// Reason annotates a failed phase, e.g. DeadlineExceeded.
	Reason string

	// Hold keeps the job active after its lines drain, until DeleteJob
	// removes it. Cancellation tests use it to guarantee a live target.
	Hold bool
}

// FakeOrchestrator is an in-memory stand-in for the Kubernetes client.
// Created jobs play a script instead of scheduling pods; their scripted
// stdout backs both the replay endpoint and the streaming pumps.
type FakeOrchestrator struct {
	mu        sync.Mutex
	scripts   []JobScript
	jobs      map[string]*fakeJob
	created   []orchestrator.CreateJobRequest
	deleted   []string
	createErr error
	pingErr   error
}

var _ services.Orchestrator = (*FakeOrchestrator)(nil)

// NewFakeOrchestrator returns an empty fake cluster.
func NewFakeOrchestrator() *FakeOrchestrator {
	return &FakeOrchestrator{jobs: make(map[string]*fakeJob)}
}

// ScriptNext queues the script for the next created job. Jobs created
// past the end of the queue run an empty script and succeed immediately.
func (f *FakeOrchestrator) ScriptNext(script JobScript) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, script)
}

// FailNextCreate makes the next CreateInvestigationJob call return err.
func (f *FakeOrchestrator) FailNextCreate(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createErr = err
}

// SetPingError controls what Ping reports.
func (f *FakeOrchestrator) SetPingError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingErr = err
}

// CreatedJobs returns every job creation request seen, in order.
func (f *FakeOrchestrator) CreatedJobs() []orchestrator.CreateJobRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]orchestrator.CreateJobRequest, len(f.created))
	copy(out, f.created)
	return out
}

// DeletedJobs returns the namespace/name keys of every deleted job.
func (f *FakeOrchestrator) DeletedJobs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.deleted))
	copy(out, f.deleted)
	return out
}

func (f *FakeOrchestrator) CreateInvestigationJob(_ context.Context, req orchestrator.CreateJobRequest) error {
	f.mu.Lock()
	if f.createErr != nil {
		err := f.createErr
		f.createErr = nil
		f.mu.Unlock()
		return err
	}
	var script JobScript
	if len(f.scripts) > 0 {
		script = f.scripts[0]
		f.scripts = f.scripts[1:]
	}
	f.created = append(f.created, req)
	job := newFakeJob()
	f.jobs[req.Namespace+"/"+req.JobName] = job
	f.mu.Unlock()

	go job.play(script)
	return nil
}

func (f *FakeOrchestrator) JobStatus(_ context.Context, namespace, name string) (*orchestrator.JobStatus, error) {
	f.mu.Lock()
	job, ok := f.jobs[namespace+"/"+name]
	f.mu.Unlock()
	if !ok {
		return nil, orchestrator.ErrJobNotFound
	}
	return job.status(), nil
}

func (f *FakeOrchestrator) DeleteJob(_ context.Context, namespace, name string) error {
	key := namespace + "/" + name
	f.mu.Lock()
	job, ok := f.jobs[key]
	delete(f.jobs, key)
	f.deleted = append(f.deleted, key)
	f.mu.Unlock()
	if !ok {
		return orchestrator.ErrJobNotFound
	}
	job.kill()
	return nil
}

func (f *FakeOrchestrator) StreamLogs(ctx context.Context, namespace, jobName string, follow bool) (io.ReadCloser, error) {
	f.mu.Lock()
	job, ok := f.jobs[namespace+"/"+jobName]
	f.mu.Unlock()
	if !ok {
		return nil, orchestrator.ErrJobNotFound
	}
	return job.openLog(ctx, follow), nil
}

func (f *FakeOrchestrator) Ping(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

// fakeJob is one scripted worker. Its log grows as the script plays;
// followers block on changed until more bytes arrive or the job ends.
type fakeJob struct {
	mu      sync.Mutex
	log     []byte
	done    bool
	phase   orchestrator.JobPhase
	reason  string
	changed chan struct{}
}

func newFakeJob() *fakeJob {
	return &fakeJob{phase: orchestrator.JobActive, changed: make(chan struct{})}
}

// notifyLocked wakes every blocked reader. Caller holds mu.
func (j *fakeJob) notifyLocked() {
	close(j.changed)
	j.changed = make(chan struct{})
}

func (j *fakeJob) play(script JobScript) {
	for _, line := range script.Lines {
		if script.LineDelay > 0 {
			time.Sleep(script.LineDelay)
		}
		j.mu.Lock()
		if j.done {
			j.mu.Unlock()
			return
		}
		j.log = append(j.log, line...)
		j.log = append(j.log, '\n')
		j.notifyLocked()
		j.mu.Unlock()
	}
	if script.Hold {
		return
	}
	phase := script.Phase
	if phase == "" {
		phase = orchestrator.JobSucceeded
	}
	j.mu.Lock()
	if !j.done {
		j.done = true
		j.phase = phase
		j.reason = script.Reason
		j.notifyLocked()
	}
	j.mu.Unlock()
}

// kill ends the job immediately, mid-script if necessary.
func (j *fakeJob) kill() {
	j.mu.Lock()
	j.done = true
	j.notifyLocked()
	j.mu.Unlock()
}

func (j *fakeJob) status() *orchestrator.JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return &orchestrator.JobStatus{Phase: j.phase, Reason: j.reason}
}

// openLog mirrors kubectl logs: follow=false snapshots what exists now,
// follow=true replays from the start and tails until the job ends. The
// returned reader honors ctx the way the client-go stream does.
func (j *fakeJob) openLog(ctx context.Context, follow bool) io.ReadCloser {
	if !follow {
		j.mu.Lock()
		snapshot := make([]byte, len(j.log))
		copy(snapshot, j.log)
		j.mu.Unlock()
		return io.NopCloser(bytes.NewReader(snapshot))
	}
	rctx, cancel := context.WithCancel(ctx)
	return &followReader{job: j, ctx: rctx, cancel: cancel}
}

type followReader struct {
	job    *fakeJob
	ctx    context.Context
	cancel context.CancelFunc
	off    int
}

func (r *followReader) Read(p []byte) (int, error) {
	j := r.job
	for {
		if err := r.ctx.Err(); err != nil {
			return 0, err
		}
		j.mu.Lock()
		if r.off < len(j.log) {
			n := copy(p, j.log[r.off:])
			r.off += n
			j.mu.Unlock()
			return n, nil
		}
		if j.done {
			j.mu.Unlock()
			return 0, io.EOF
		}
		ch := j.changed
		j.mu.Unlock()

		select {
		case <-ch:
		case <-r.ctx.Done():
			return 0, r.ctx.Err()
		}
	}
}

func (r *followReader) Close() error {
	r.cancel()
	return nil
}
