package workers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"golockbridge/logger"
	"golockbridge/types"
)

type FailedRecords interface {
	ListByStatus(ctx context.Context, status types.Status) ([]*types.LockRecord, error)
	SaveReconciliation(ctx context.Context, note types.ReconciliationNote) error
}

type LockQuery interface {
	QueryByLockID(ctx context.Context, lockID string) (*types.BridgeStatus, error)
}

// Reconciler re-derives failed records whose lock reached the source chain.
// Records themselves are never rewritten, a note is stored next to them.
type Reconciler struct {
	records  FailedRecords
	query    LockQuery
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewReconciler(records FailedRecords, query LockQuery, interval time.Duration, logger *zap.Logger) *Reconciler {
	return &Reconciler{records: records, query: query, interval: interval, logger: logger, now: time.Now}
}

func (r *Reconciler) Run(ctx context.Context) error {
	if r.interval <= 0 {
		r.logger.Info("reconciler disabled")
		return nil
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n, err := r.Pass(ctx); err != nil {
				r.logger.Error("error reconciling failed records", zap.Error(err))
			} else if n > 0 {
				r.logger.Info("reconciled failed records", zap.Int("count", n))
			}
		}
	}
}

// Pass checks every eligible failed record once and returns how many notes were written
func (r *Reconciler) Pass(ctx context.Context) (int, error) {
	failed, err := r.records.ListByStatus(ctx, types.StatusFailed)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, rec := range failed {
		if ctx.Err() != nil {
			return written, nil
		}
		if !eligible(rec) {
			continue
		}

		note := types.ReconciliationNote{RecordID: rec.ID, LockID: rec.LockID, CheckedAt: r.now().UTC()}
		st, err := r.query.QueryByLockID(ctx, rec.LockID)
		if err != nil {
			note.Error = err.Error()
			r.logger.Warn("cannot query lock status", append(logger.Record(rec.ID, rec.SourceTxHash, rec.LockID), zap.Error(err))...)
		} else {
			note.Status = st
			if st.Status == types.StatusCompleted {
				r.logger.Info("failed record completed on source chain", logger.Record(rec.ID, rec.SourceTxHash, rec.LockID)...)
			}
		}

		if err := r.records.SaveReconciliation(ctx, note); err != nil {
			r.logger.Error("error saving reconciliation note", append(logger.Record(rec.ID, rec.SourceTxHash, rec.LockID), zap.Error(err))...)
			continue
		}
		written++
	}
	return written, nil
}

func eligible(rec *types.LockRecord) bool {
	if rec == nil || rec.LockID == "" || rec.Error == nil {
		return false
	}
	return rec.Error.Recoverable || rec.Error.Kind == types.KindCancelled
}

type ActiveRecords interface {
	ListActive(ctx context.Context) ([]*types.LockRecord, error)
}

type Resumer interface {
	Resume(records ...types.LockRecord)
}

// ResumeOrphans hands every non-terminal stored record back to the dispatcher
func ResumeOrphans(ctx context.Context, records ActiveRecords, resumer Resumer, log *zap.Logger) (int, error) {
	active, err := records.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	orphans := make([]types.LockRecord, 0, len(active))
	for _, rec := range active {
		log.Info("resuming orphaned record", append(logger.Record(rec.ID, rec.SourceTxHash, rec.LockID),
			zap.String("status", string(rec.Status)))...)
		orphans = append(orphans, *rec)
	}
	resumer.Resume(orphans...)
	return len(orphans), nil
}
