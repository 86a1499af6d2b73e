package status

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"golockbridge/types"
)

type LockReader interface {
	ReadLockStatus(ctx context.Context, lockID common.Hash) (*types.LockStatus, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// RecordFinder is the optional operator store
type RecordFinder interface {
	FindByLockID(ctx context.Context, lockID string) (*types.LockRecord, error)
}

// Service re-derives the status of a lock from the source chain alone, so it
// answers the same after a restart as before it.
type Service struct {
	source  LockReader
	ledger  Pinger
	records RecordFinder
	logger  *zap.Logger
}

// NewService builds the query service; records may be nil
func NewService(source LockReader, ledger Pinger, records RecordFinder, logger *zap.Logger) *Service {
	return &Service{source: source, ledger: ledger, records: records, logger: logger}
}

func ParseLockID(lockID string) (common.Hash, error) {
	lockID = strings.TrimSpace(lockID)
	if !strings.HasPrefix(lockID, "0x") && !strings.HasPrefix(lockID, "0X") {
		lockID = "0x" + lockID
	}
	raw, err := hexutil.Decode(lockID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: lock id: %v", types.ErrInvalidRequest, err)
	}
	if len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: lock id must be %d bytes, got %d", types.ErrInvalidRequest, common.HashLength, len(raw))
	}
	return common.BytesToHash(raw), nil
}

func (s *Service) QueryByLockID(ctx context.Context, lockID string) (*types.BridgeStatus, error) {
	id, err := ParseLockID(lockID)
	if err != nil {
		return nil, err
	}

	lock, err := s.source.ReadLockStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	if !lock.Exists {
		return nil, fmt.Errorf("%w: %s", types.ErrLockNotFound, id.Hex())
	}

	res := &types.BridgeStatus{
		LockID:          id.Hex(),
		Status:          types.StatusLocked,
		Amount:          lock.Amount,
		SourceCompleted: lock.Completed,
	}
	if lock.Completed {
		res.Status = types.StatusCompleted
	}
	if !lock.Timestamp.IsZero() {
		ts := lock.Timestamp
		res.LockedAt = &ts
	}

	s.enrich(ctx, res)

	if s.ledger != nil {
		if err := s.ledger.Ping(ctx); err != nil {
			s.logger.Debug("destination ledger unreachable during status query", zap.String("lock_id", res.LockID), zap.Error(err))
		} else {
			res.DestinationReachable = true
		}
	}
	return res, nil
}

// enrich adds what the operator store knows; a store failure is not a query failure
func (s *Service) enrich(ctx context.Context, res *types.BridgeStatus) {
	if s.records == nil {
		return
	}
	rec, err := s.records.FindByLockID(ctx, res.LockID)
	if err != nil {
		s.logger.Warn("cannot read stored record", zap.String("lock_id", res.LockID), zap.Error(err))
		return
	}
	if rec == nil {
		return
	}
	res.SourceTxHash = rec.SourceTxHash
	res.DestinationTxRef = rec.DestinationTxRef
	switch rec.Status {
	case types.StatusCompleted:
		res.Status = types.StatusCompleted
	case types.StatusFailed:
		if res.Status != types.StatusCompleted {
			res.Error = rec.Error
		}
	}
}
