package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
	"go.uber.org/zap"

	"golockbridge/types"
)

// ErrStale is returned when a save would move a record backwards
var ErrStale = errors.New("stale record")

const saveRetries = 3

func timeoutDialOptions() []redis.DialOption {
	return []redis.DialOption{
		redis.DialConnectTimeout(5 * time.Second),
		redis.DialReadTimeout(5 * time.Second),
		redis.DialWriteTimeout(5 * time.Second),
	}
}

func NewPool(host string, port int) *redis.Pool {
	redisAddr := fmt.Sprintf("%s:%d", host, port)
	return &redis.Pool{
		MaxIdle:     5,
		IdleTimeout: 4 * time.Minute,
		Dial:        func() (redis.Conn, error) { return redis.Dial("tcp", redisAddr, timeoutDialOptions()...) },
	}
}

func recordKey(id string) string              { return "lockrec:" + id }
func statusSetKey(status types.Status) string { return "lockrecs:" + string(status) }
func lockIDKey(lockID string) string          { return "lockrec:lockid:" + lockID }
func sourceTxKey(txHash string) string        { return "lockrec:srctx:" + txHash }
func reconcileKey(id string) string           { return "reconcile:" + id }

// Store keeps LockRecords for operator visibility. Every record lives at
// lockrec:<id> and its id sits in exactly one lockrecs:<status> set.
type Store struct {
	pool   *redis.Pool
	logger *zap.Logger
}

func NewStore(pool *redis.Pool, logger *zap.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

func (s *Store) Ping(ctx context.Context) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Do("PING")
	return err
}

// Save writes rec and moves it between status sets atomically. A save that
// would regress the stored status returns ErrStale and changes nothing.
func (s *Store) Save(ctx context.Context, rec types.LockRecord) error {
	if rec.ID == "" {
		return errors.New("lock record cannot have empty id")
	}
	if !rec.Status.Valid() {
		return fmt.Errorf("lock record %s has invalid status %q", rec.ID, rec.Status)
	}

	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	recJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("cannot marshal lock record to JSON: %s", err.Error())
	}

	for attempt := 0; attempt < saveRetries; attempt++ {
		if _, err := conn.Do("WATCH", recordKey(rec.ID)); err != nil {
			return err
		}

		prev, err := getRecord(conn, rec.ID)
		if err != nil {
			conn.Do("UNWATCH")
			return err
		}
		if prev != nil && regresses(prev.Status, rec.Status) {
			conn.Do("UNWATCH")
			return fmt.Errorf("%w: %s is %s, refusing %s", ErrStale, rec.ID, prev.Status, rec.Status)
		}

		conn.Send("MULTI")
		if prev != nil && prev.Status != rec.Status {
			conn.Send("SREM", statusSetKey(prev.Status), rec.ID)
		}
		conn.Send("SET", recordKey(rec.ID), recJSON)
		conn.Send("SADD", statusSetKey(rec.Status), rec.ID)
		if rec.LockID != "" {
			conn.Send("SET", lockIDKey(rec.LockID), rec.ID)
		}
		if rec.SourceTxHash != "" {
			conn.Send("SET", sourceTxKey(rec.SourceTxHash), rec.ID)
		}
		reply, err := conn.Do("EXEC")
		if err != nil {
			s.logger.Error("error Redis EXEC", zap.String("record_id", rec.ID), zap.Error(err))
			return err
		}
		if reply != nil {
			return nil
		}
		// WATCH fired, another writer touched the record
	}
	return fmt.Errorf("lock record %s kept changing during save", rec.ID)
}

func regresses(stored, next types.Status) bool {
	if stored.Terminal() {
		return stored != next
	}
	return next.Rank() < stored.Rank()
}

func getRecord(conn redis.Conn, id string) (*types.LockRecord, error) {
	raw, err := redis.Bytes(conn.Do("GET", recordKey(id)))
	if errors.Is(err, redis.ErrNil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec types.LockRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("corrupt lock record %s: %w", id, err)
	}
	return &rec, nil
}

// Get returns nil without error when the record does not exist
func (s *Store) Get(ctx context.Context, id string) (*types.LockRecord, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return getRecord(conn, id)
}

func (s *Store) FindByLockID(ctx context.Context, lockID string) (*types.LockRecord, error) {
	return s.findByIndex(ctx, lockIDKey(lockID))
}

func (s *Store) FindBySourceTxHash(ctx context.Context, txHash string) (*types.LockRecord, error) {
	return s.findByIndex(ctx, sourceTxKey(txHash))
}

func (s *Store) findByIndex(ctx context.Context, key string) (*types.LockRecord, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	id, err := redis.String(conn.Do("GET", key))
	if errors.Is(err, redis.ErrNil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return getRecord(conn, id)
}

// ListByStatus scans one status set; ids whose record vanished are skipped
func (s *Store) ListByStatus(ctx context.Context, status types.Status) ([]*types.LockRecord, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", types.ErrInvalidRequest, status)
	}

	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	recs := make([]*types.LockRecord, 0)
	var cursor int64
	for {
		values, err := redis.Values(conn.Do("SSCAN", statusSetKey(status), cursor))
		if err != nil {
			return nil, err
		}

		var ids []string
		if _, err := redis.Scan(values, &cursor, &ids); err != nil {
			return nil, err
		}

		for _, id := range ids {
			rec, err := getRecord(conn, id)
			if err != nil {
				return nil, err
			}
			if rec == nil || rec.Status != status {
				continue
			}
			recs = append(recs, rec)
		}

		if cursor == 0 || ctx.Err() != nil {
			break
		}
	}
	return recs, ctx.Err()
}

// ListActive returns every non-terminal record
func (s *Store) ListActive(ctx context.Context) ([]*types.LockRecord, error) {
	var active []*types.LockRecord
	for _, status := range types.AllStatuses {
		if status.Terminal() {
			continue
		}
		recs, err := s.ListByStatus(ctx, status)
		if err != nil {
			return nil, err
		}
		active = append(active, recs...)
	}
	return active, nil
}

// Persist saves every event until the channel is closed. Saves run detached
// from ctx cancellation so the final transitions of a shutdown are kept.
func (s *Store) Persist(ctx context.Context, events <-chan types.StatusEvent) {
	base := context.WithoutCancel(ctx)
	for ev := range events {
		saveCtx, cancel := context.WithTimeout(base, 5*time.Second)
		err := s.Save(saveCtx, ev.Record)
		cancel()
		switch {
		case errors.Is(err, ErrStale):
			s.logger.Debug("skipping stale status event", zap.String("record_id", ev.Record.ID), zap.Error(err))
		case err != nil:
			s.logger.Error("error persisting lock record", zap.String("record_id", ev.Record.ID),
				zap.String("status", string(ev.Record.Status)), zap.Error(err))
		}
	}
}

func (s *Store) SaveReconciliation(ctx context.Context, note types.ReconciliationNote) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	noteJSON, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("cannot marshal reconciliation note to JSON: %s", err.Error())
	}
	_, err = conn.Do("SET", reconcileKey(note.RecordID), noteJSON)
	return err
}

func (s *Store) GetReconciliation(ctx context.Context, recordID string) (*types.ReconciliationNote, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	raw, err := redis.Bytes(conn.Do("GET", reconcileKey(recordID)))
	if errors.Is(err, redis.ErrNil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var note types.ReconciliationNote
	if err := json.Unmarshal(raw, &note); err != nil {
		return nil, err
	}
	return &note, nil
}
