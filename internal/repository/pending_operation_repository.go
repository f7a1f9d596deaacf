package repository

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pscprep/examengine/internal/model"
	"github.com/pscprep/examengine/internal/storage"
	"github.com/rs/zerolog/log"
)

const (
	pendingOpsKey    = "pending_operations"
	pendingOpsSeqKey = "pending_operations:next_id"
)

// PendingOperationRepository is the ordered durable log of writes that
// failed due to absent connectivity. Insertion order is replay order.
type PendingOperationRepository interface {
	// Enqueue assigns a monotonic id and creation timestamp, appends the
	// operation, and returns the stored record.
	Enqueue(op model.PendingOperation) model.PendingOperation
	// ListAll returns the queue in insertion order.
	ListAll() []model.PendingOperation
	// Remove deletes one operation by id. Called only after its replay has
	// been confirmed, never before.
	Remove(id int64)
	Count() int
}

type pendingOperationRepository struct {
	store storage.Store
	now   func() time.Time

	// mu serializes every read-modify-write of the log. Enqueue runs on
	// bridge handlers and the auto-submit ticker while the reconnect
	// drainer removes on its own goroutine; an unserialized rewrite would
	// resurrect already-replayed operations or drop fresh ones.
	mu sync.Mutex
}

// NewPendingOperationRepository creates the repository. A nil now
// defaults to time.Now.
func NewPendingOperationRepository(store storage.Store, now func() time.Time) PendingOperationRepository {
	if now == nil {
		now = time.Now
	}
	return &pendingOperationRepository{store: store, now: now}
}

func (r *pendingOperationRepository) Enqueue(op model.PendingOperation) model.PendingOperation {
	r.mu.Lock()
	defer r.mu.Unlock()

	seq, _ := r.store.GetNumber(pendingOpsSeqKey)
	op.ID = int64(seq) + 1
	op.CreatedAt = r.now().UnixMilli()

	ops := r.listLocked()
	ops = append(ops, op)
	r.persist(ops)
	r.store.SetNumber(pendingOpsSeqKey, float64(op.ID))

	log.Info().Int64("id", op.ID).Str("type", string(op.Type)).Int("queued", len(ops)).
		Msg("Queued pending operation")
	return op
}

func (r *pendingOperationRepository) ListAll() []model.PendingOperation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listLocked()
}

func (r *pendingOperationRepository) listLocked() []model.PendingOperation {
	raw, ok := r.store.GetString(pendingOpsKey)
	if !ok {
		return nil
	}
	var ops []model.PendingOperation
	if err := json.Unmarshal([]byte(raw), &ops); err != nil {
		log.Warn().Err(err).Msg("Corrupt pending-operation log, treating as empty")
		return nil
	}
	return ops
}

func (r *pendingOperationRepository) Remove(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ops := r.listLocked()
	kept := ops[:0]
	for _, op := range ops {
		if op.ID != id {
			kept = append(kept, op)
		}
	}
	if len(kept) == 0 {
		r.store.Remove(pendingOpsKey)
		return
	}
	r.persist(kept)
}

func (r *pendingOperationRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listLocked())
}

func (r *pendingOperationRepository) persist(ops []model.PendingOperation) {
	encoded, err := json.Marshal(ops)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode pending-operation log")
		return
	}
	r.store.Set(pendingOpsKey, string(encoded))
}
