package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"golockbridge/types"
)

// Dispatcher runs workflows in the background under one base context, so a
// shutdown cancels every in-flight workflow and Wait lets them record failed.
type Dispatcher struct {
	ctx    context.Context
	orch   *Orchestrator
	wg     sync.WaitGroup
	logger *zap.Logger

	// rejections are kept for the most recent maxRejected requests, oldest evicted first
	mu          sync.Mutex
	rejected    map[string]error
	rejectOrder []string
	maxRejected int
}

const defaultMaxRejected = 1024

func NewDispatcher(ctx context.Context, orch *Orchestrator, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{ctx: ctx, orch: orch, logger: logger, rejected: map[string]error{}, maxRejected: defaultMaxRejected}
}

// Start validates req synchronously and runs it in the background,
// returning the id the record will carry.
func (d *Dispatcher) Start(req Request) (string, error) {
	if _, _, err := d.orch.Validate(req); err != nil {
		return "", err
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_, err := d.orch.Run(d.ctx, req)
		var wfErr *types.WorkflowError
		switch {
		case err == nil:
		case errors.As(err, &wfErr):
			// failure already recorded on the record
		default:
			d.logger.Warn("bridge rejected before lock submission", zap.String("record_id", req.ID), zap.Error(err))
			d.reject(req.ID, err)
		}
	}()
	return req.ID, nil
}

// Watch follows an already submitted lock in the background
func (d *Dispatcher) Watch(req WatchRequest) (string, error) {
	if _, err := d.orch.Route(req.Symbol); err != nil {
		return "", err
	}
	if req.SourceTxHash == (common.Hash{}) {
		return "", fmt.Errorf("%w: empty source tx hash", types.ErrInvalidRequest)
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if _, err := d.orch.Watch(d.ctx, req); err != nil {
			d.logger.Warn("watched bridge failed", zap.String("record_id", req.ID), zap.Error(err))
		}
	}()
	return req.ID, nil
}

// Resume continues stored records in the background
func (d *Dispatcher) Resume(records ...types.LockRecord) {
	for _, rec := range records {
		d.wg.Add(1)
		go func(rec types.LockRecord) {
			defer d.wg.Done()
			if _, err := d.orch.Resume(d.ctx, rec); err != nil {
				d.logger.Warn("resumed bridge failed", zap.String("record_id", rec.ID), zap.Error(err))
			}
		}(rec)
	}
}

func (d *Dispatcher) reject(id string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.rejected[id]; !ok {
		d.rejectOrder = append(d.rejectOrder, id)
	}
	d.rejected[id] = err
	for len(d.rejectOrder) > d.maxRejected {
		delete(d.rejected, d.rejectOrder[0])
		d.rejectOrder = d.rejectOrder[1:]
	}
}

// Rejection returns why a started request never produced a record. Only the
// most recent rejections are remembered.
func (d *Dispatcher) Rejection(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rejected[id]
}

func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
