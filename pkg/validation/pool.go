package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/morezero/procurement-assistant/pkg/procurement"
)

const poolLogPrefix = "validation:pool"

// TaskStatus is the lifecycle state of a validation task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskTimeout   TaskStatus = "timeout"
)

// Task is one validation run for one purchase order.
type Task struct {
	ID         string        `json:"task_id"`
	PONumber   string        `json:"po_number"`
	Status     TaskStatus    `json:"status"`
	Result     *Result       `json:"result,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Checker validates one purchase order. *Validator satisfies it.
type Checker interface {
	Validate(po *procurement.PurchaseOrder) *Result
}

// PoolConfig bounds a Pool.
type PoolConfig struct {
	MaxConcurrent      int
	Timeout            time.Duration
	HighValueThreshold float64
	MaxLineItems       int
}

// DefaultPoolConfig returns the standard pool bounds.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{MaxConcurrent: 5, Timeout: 30 * time.Second, HighValueThreshold: 5000, MaxLineItems: 10}
}

// Pool runs validations with bounded concurrency and a per-task timeout. A timed-out
// task is reported as TIMEOUT; its goroutine keeps its slot until the check returns.
type Pool struct {
	cfg     PoolConfig
	checker Checker
	known   func(string) bool
	sem     *semaphore.Weighted
}

// NewPool creates a Pool. A nil checker uses NewValidator(DefaultRules()).
func NewPool(cfg PoolConfig, checker Checker) *Pool {
	def := DefaultPoolConfig()
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.HighValueThreshold <= 0 {
		cfg.HighValueThreshold = def.HighValueThreshold
	}
	if cfg.MaxLineItems <= 0 {
		cfg.MaxLineItems = def.MaxLineItems
	}
	v := NewValidator(DefaultRules())
	if checker == nil {
		checker = v
	}
	return &Pool{
		cfg:     cfg,
		checker: checker,
		known:   v.IsKnownSupplier,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
}

// ShouldSpawn reports whether po warrants a validation task: high value, many lines,
// or an unknown supplier.
func (p *Pool) ShouldSpawn(po *procurement.PurchaseOrder) bool {
	switch {
	case po.TotalAmount > p.cfg.HighValueThreshold:
		slog.Info(fmt.Sprintf("%s - PO %s is high-value ($%.2f), spawning validator", poolLogPrefix, po.PONumber, po.TotalAmount))
		return true
	case len(po.LineItems) > p.cfg.MaxLineItems:
		slog.Info(fmt.Sprintf("%s - PO %s has %d line items, spawning validator", poolLogPrefix, po.PONumber, len(po.LineItems)))
		return true
	case !p.known(po.SupplierID):
		slog.Info(fmt.Sprintf("%s - PO %s uses unknown supplier %s, spawning validator", poolLogPrefix, po.PONumber, po.SupplierID))
		return true
	}
	return false
}

// ValidateAll validates every purchase order and returns one task per order, in input order.
func (p *Pool) ValidateAll(ctx context.Context, pos []procurement.PurchaseOrder) []*Task {
	tasks := make([]*Task, len(pos))
	var g errgroup.Group
	for i := range pos {
		tasks[i] = &Task{ID: "val-" + uuid.NewString()[:8], PONumber: pos[i].PONumber, Status: TaskPending}
		po := &pos[i]
		task := tasks[i]
		g.Go(func() error {
			p.run(ctx, task, po)
			return nil
		})
	}
	_ = g.Wait()
	slog.Info(fmt.Sprintf("%s - Batch validation complete: %d POs validated", poolLogPrefix, len(tasks)))
	return tasks
}

// ValidateFlagged validates only the orders ShouldSpawn selects.
func (p *Pool) ValidateFlagged(ctx context.Context, pos []procurement.PurchaseOrder) []*Task {
	var flagged []procurement.PurchaseOrder
	for i := range pos {
		if p.ShouldSpawn(&pos[i]) {
			flagged = append(flagged, pos[i])
		}
	}
	return p.ValidateAll(ctx, flagged)
}

type outcome struct {
	result *Result
	err    error
}

func (p *Pool) run(ctx context.Context, task *Task, po *procurement.PurchaseOrder) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		task.Status, task.Error = TaskFailed, err.Error()
		return
	}
	task.Status = TaskRunning
	task.StartedAt = time.Now()

	done := make(chan outcome, 1)
	go func() {
		defer p.sem.Release(1)
		defer func() {
			if v := recover(); v != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", v)}
			}
		}()
		done <- outcome{result: p.checker.Validate(po)}
	}()

	timer := time.NewTimer(p.cfg.Timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		task.FinishedAt = time.Now()
		if out.err != nil {
			task.Status, task.Error = TaskFailed, out.err.Error()
			slog.Error(fmt.Sprintf("%s - Validation failed for %s: %v", poolLogPrefix, po.PONumber, out.err))
		} else {
			task.Status, task.Result = TaskCompleted, out.result
		}
	case <-timer.C:
		task.FinishedAt = time.Now()
		task.Status, task.Error = TaskTimeout, fmt.Sprintf("validation exceeded %s", p.cfg.Timeout)
		slog.Warn(fmt.Sprintf("%s - Validation timed out for %s", poolLogPrefix, po.PONumber))
	case <-ctx.Done():
		task.FinishedAt = time.Now()
		task.Status = TaskFailed
		task.Error = ctx.Err().Error()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			task.Status = TaskTimeout
		}
	}
	task.Duration = task.FinishedAt.Sub(task.StartedAt)
}

// Summary aggregates a batch of tasks.
type Summary struct {
	Total       int     `json:"total_validated"`
	Completed   int     `json:"completed"`
	Passed      int     `json:"passed"`
	Failed      int     `json:"failed"`
	Errors      int     `json:"errors"`
	Timeouts    int     `json:"timeout"`
	TotalIssues int     `json:"total_issues"`
	PassRate    float64 `json:"pass_rate"`
}

// Summarize counts outcomes. Failed counts completed tasks whose result is invalid;
// Errors counts tasks that could not run.
func Summarize(tasks []*Task) Summary {
	s := Summary{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case TaskCompleted:
			s.Completed++
			if t.Result.Valid {
				s.Passed++
			} else {
				s.Failed++
			}
			s.TotalIssues += len(t.Result.Issues)
		case TaskTimeout:
			s.Timeouts++
		case TaskFailed:
			s.Errors++
		}
	}
	if s.Total > 0 {
		s.PassRate = math.Round(float64(s.Passed)/float64(s.Total)*1000) / 10
	}
	return s
}
