package cleanup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingPruner records prune invocations and the retention passed in.
type countingPruner struct {
	mu        sync.Mutex
	calls     int
	retention time.Duration
	result    int
}

func (p *countingPruner) PruneTerminal(retention time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.retention = retention
	return p.result
}

func (p *countingPruner) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *countingPruner) lastRetention() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.retention
}

func TestService_PrunesImmediatelyThenOnTicks(t *testing.T) {
	pruner := &countingPruner{result: 2}
	svc := NewService(pruner, 24*time.Hour, 10*time.Millisecond)

	svc.Start(context.Background())
	defer svc.Stop()

	require.Eventually(t, func() bool { return pruner.callCount() >= 3 },
		time.Second, 5*time.Millisecond, "expected the immediate prune plus ticker-driven ones")

	assert.Equal(t, 24*time.Hour, pruner.lastRetention())
}

func TestService_StopWaitsForLoop(t *testing.T) {
	pruner := &countingPruner{}
	svc := NewService(pruner, time.Hour, time.Hour)

	svc.Start(context.Background())
	svc.Stop()

	assert.Equal(t, 1, pruner.callCount(), "one immediate prune, none after stop")

	// Stop again is safe.
	svc.Stop()
}

func TestService_StartTwiceIsNoOp(t *testing.T) {
	pruner := &countingPruner{}
	svc := NewService(pruner, time.Hour, time.Hour)

	ctx := context.Background()
	svc.Start(ctx)
	svc.Start(ctx)
	svc.Stop()

	assert.Equal(t, 1, pruner.callCount())
}

func TestService_StopBeforeStartIsNoOp(t *testing.T) {
	svc := NewService(&countingPruner{}, time.Hour, time.Hour)
	svc.Stop()
}
