package collab

import (
	"context"
	"sync"
	"time"

	"tutor/pkg/logx"
	"tutor/pkg/proto"
)

// DefaultCallTimeout bounds one collaborator call when none is configured.
const DefaultCallTimeout = 30 * time.Second

// DefaultMaxConcurrent bounds parallel collaborator calls. Routes select at
// most four collaborators, so this is effectively "all at once".
const DefaultMaxConcurrent = 4

// Observer receives per-call outcomes; pkg/metrics implements it. A nil
// observer disables recording.
type Observer interface {
	RecordCollaboratorCall(name, status string, duration time.Duration)
}

// Invoker fans one routing decision out across the selected collaborators
// with bounded concurrency. Results are keyed by collaborator name; a failed
// or timed-out call yields a result whose Err is set, never an invoker error.
type Invoker struct {
	collaborators map[string]*Collaborator
	timeout       time.Duration
	maxConcurrent int
	observer      Observer
	logger        *logx.Logger
}

// InvokerOption customizes an Invoker.
type InvokerOption func(*Invoker)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) InvokerOption {
	return func(inv *Invoker) {
		if d > 0 {
			inv.timeout = d
		}
	}
}

// WithMaxConcurrent sets the parallel call bound.
func WithMaxConcurrent(n int) InvokerOption {
	return func(inv *Invoker) {
		if n > 0 {
			inv.maxConcurrent = n
		}
	}
}

// WithObserver registers a metrics observer.
func WithObserver(o Observer) InvokerOption {
	return func(inv *Invoker) {
		inv.observer = o
	}
}

// NewInvoker creates an invoker over a collaborator set.
func NewInvoker(collaborators map[string]*Collaborator, opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		collaborators: collaborators,
		timeout:       DefaultCallTimeout,
		maxConcurrent: DefaultMaxConcurrent,
		logger:        logx.NewLogger("invoker"),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Invoke runs every named collaborator and collects results by name. Call
// order never matters: the synthesizer consumes the map by name. A name with
// no registered collaborator yields an error-carrying result.
func (inv *Invoker) Invoke(ctx context.Context, names []string, pctx *PromptContext) map[string]proto.AgentResult {
	results := make(map[string]proto.AgentResult, len(names))
	if len(names) == 0 {
		return results
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, inv.maxConcurrent)

	for _, name := range names {
		collaborator, ok := inv.collaborators[name]
		if !ok {
			inv.logger.Warn("no collaborator registered for %q", name)
			results[name] = proto.AgentResult{Name: name, Err: errUnknownCollaborator(name)}
			continue
		}

		wg.Add(1)
		go func(name string, collaborator *Collaborator) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				mu.Lock()
				results[name] = proto.AgentResult{Name: name, Err: ctx.Err()}
				mu.Unlock()
				return
			}

			callCtx, cancel := context.WithTimeout(ctx, inv.timeout)
			defer cancel()

			start := time.Now()
			result := collaborator.Invoke(callCtx, pctx)
			duration := time.Since(start)

			status := "ok"
			if result.Err != nil {
				status = "error"
				inv.logger.DebugDomain(logx.DomainCollab, "%s failed after %v: %v", name, duration, result.Err)
			} else if result.Text == "" {
				status = "empty"
			}
			if inv.observer != nil {
				inv.observer.RecordCollaboratorCall(name, status, duration)
			}

			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, collaborator)
	}

	wg.Wait()
	return results
}

type errUnknownCollaborator string

func (e errUnknownCollaborator) Error() string {
	return "unknown collaborator: " + string(e)
}
