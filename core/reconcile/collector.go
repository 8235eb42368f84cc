package reconcile

import (
	"context"
	"errors"
	"sort"
	"sync"

	"turnover-sync/core/retry"

	"go.uber.org/zap"
)

// Writer persists a batch of operations. It returns one error slot per
// operation, in the same order; a nil slot means that operation was applied.
type Writer interface {
	WriteBatch(ctx context.Context, ops []Operation) []error
}

// FailedOperation is an operation that exhausted its retry budget.
type FailedOperation struct {
	Op  Operation
	Err error
}

// FlushResult reports the outcome of a flush.
type FlushResult struct {
	Written int
	Failed  []FailedOperation
}

var errOpsPending = errors.New("operations pending retry")

type queuedOp struct {
	seq int
	op  Operation
}

// Collector buffers operations and flushes them in bounded batches.
//
// Operations for the same record are applied in submission order: a batch
// never carries two operations for one record, and once an operation fails,
// later operations for that record wait for the next attempt.
type Collector struct {
	w         Writer
	batchSize int
	policy    retry.Policy
	logger    *zap.Logger

	mu      sync.Mutex
	pending []queuedOp
	seq     int
}

// NewCollector creates a collector writing through w.
func NewCollector(w Writer, cfg Config, logger *zap.Logger) *Collector {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		w:         w,
		batchSize: cfg.BatchSize,
		policy: retry.Policy{
			Attempts: cfg.WriteAttempts,
			Backoff:  cfg.WriteBackoff,
		},
		logger: logger,
	}
}

// Submit queues operations for the next flush.
func (c *Collector) Submit(ops ...Operation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, op := range ops {
		c.pending = append(c.pending, queuedOp{seq: c.seq, op: op})
		c.seq++
	}
}

// Pending returns the number of queued operations.
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Flush writes every queued operation, retrying failures with backoff until
// the retry budget is spent. Operations that still fail are reported, never
// re-queued.
func (c *Collector) Flush(ctx context.Context) FlushResult {
	c.mu.Lock()
	queue := c.pending
	c.pending = nil
	c.mu.Unlock()

	var result FlushResult
	lastErr := make(map[int]error)

	if len(queue) > 0 {
		_ = retry.Do(ctx, c.policy, func(int) error {
			next, written, failed := c.pass(ctx, queue, lastErr)
			result.Written += written
			result.Failed = append(result.Failed, failed...)
			queue = next
			if len(queue) > 0 {
				return errOpsPending
			}
			return nil
		})
	}

	for _, q := range queue {
		err := lastErr[q.seq]
		if err == nil {
			err = ctx.Err()
		}
		result.Failed = append(result.Failed, FailedOperation{Op: q.op, Err: err})
	}
	for _, f := range result.Failed {
		c.logger.Error("Dropping operation after retries",
			zap.String("kind", string(f.Op.Kind)),
			zap.String("record_id", f.Op.RecordID),
			zap.Error(f.Err),
		)
	}
	return result
}

// pass sends one round of batches. It returns the operations to retry in
// submission order, the number written and the operations that can never
// succeed.
func (c *Collector) pass(ctx context.Context, queue []queuedOp, lastErr map[int]error) ([]queuedOp, int, []FailedOperation) {
	blocked := make(map[string]struct{})
	var (
		retryQueue []queuedOp
		failed     []FailedOperation
		written    int
	)

	remaining := queue
	for len(remaining) > 0 {
		batch, deferred := c.nextBatch(remaining, blocked)
		if len(batch) == 0 {
			retryQueue = append(retryQueue, deferred...)
			break
		}

		ops := make([]Operation, len(batch))
		for i, q := range batch {
			ops[i] = q.op
		}
		errs := c.w.WriteBatch(ctx, ops)

		for i, q := range batch {
			err := errors.New("writer returned no result for operation")
			if i < len(errs) {
				err = errs[i]
			}
			if err == nil {
				written++
				delete(lastErr, q.seq)
				continue
			}
			lastErr[q.seq] = err
			blocked[q.op.RecordID] = struct{}{}

			if errors.Is(err, ErrWriteConflict) {
				reduced, ok := q.op.Reduce()
				if !ok {
					failed = append(failed, FailedOperation{Op: q.op, Err: err})
					delete(lastErr, q.seq)
					continue
				}
				c.logger.Warn("Write conflict, retrying with lifecycle fields only",
					zap.String("record_id", q.op.RecordID),
					zap.Error(err),
				)
				q.op = reduced
			}
			retryQueue = append(retryQueue, q)
		}
		remaining = deferred
	}

	sort.Slice(retryQueue, func(i, j int) bool {
		return retryQueue[i].seq < retryQueue[j].seq
	})
	return retryQueue, written, failed
}

// nextBatch takes up to batchSize operations, at most one per record. Records
// blocked by a failure earlier in the pass, and anything queued behind an
// operation that did not fit, are deferred so no record's operations reorder.
func (c *Collector) nextBatch(queue []queuedOp, blocked map[string]struct{}) (batch, deferred []queuedOp) {
	held := make(map[string]struct{})
	for _, q := range queue {
		id := q.op.RecordID
		_, isBlocked := blocked[id]
		_, isHeld := held[id]
		if isBlocked || isHeld || len(batch) >= c.batchSize {
			deferred = append(deferred, q)
			held[id] = struct{}{}
			continue
		}
		batch = append(batch, q)
		held[id] = struct{}{}
	}
	return batch, deferred
}
