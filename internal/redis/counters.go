package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"crm/internal/domain"
)

// counterTTL keeps daily counters around for a week after their last write.
const counterTTL = 7 * 24 * time.Hour

// CounterStore keeps the operator's daily call tally per workspace.
type CounterStore struct {
	client *redis.Client
}

// NewCounterStore creates a new CounterStore.
func NewCounterStore(client *redis.Client) *CounterStore {
	return &CounterStore{client: client}
}

func counterKey(suffix, workspace string, day time.Time) string {
	return fmt.Sprintf("calls_%s_%s_%s", suffix, day.Format("2006-01-02"), workspace)
}

// Load reads the tally for workspace on day. Missing keys count as zero.
func (s *CounterStore) Load(ctx context.Context, workspace string, day time.Time) (domain.Tally, error) {
	pipe := s.client.Pipeline()
	countCmd := pipe.Get(ctx, counterKey("count", workspace, day))
	timeCmd := pipe.Get(ctx, counterKey("time", workspace, day))

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return domain.Tally{}, fmt.Errorf("load call counters: %w", err)
	}

	calls, err := intOrZero(countCmd)
	if err != nil {
		return domain.Tally{}, err
	}
	seconds, err := intOrZero(timeCmd)
	if err != nil {
		return domain.Tally{}, err
	}

	return domain.Tally{Calls: int(calls), ActiveTime: time.Duration(seconds) * time.Second}, nil
}

// Add increments the tally and returns the stored totals.
func (s *CounterStore) Add(ctx context.Context, workspace string, day time.Time, calls int, active time.Duration) (domain.Tally, error) {
	countKey := counterKey("count", workspace, day)
	timeKey := counterKey("time", workspace, day)

	var countCmd, timeCmd *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		countCmd = pipe.IncrBy(ctx, countKey, int64(calls))
		timeCmd = pipe.IncrBy(ctx, timeKey, int64(active/time.Second))
		pipe.Expire(ctx, countKey, counterTTL)
		pipe.Expire(ctx, timeKey, counterTTL)
		return nil
	})
	if err != nil {
		return domain.Tally{}, fmt.Errorf("add call counters: %w", err)
	}

	return domain.Tally{
		Calls:      int(countCmd.Val()),
		ActiveTime: time.Duration(timeCmd.Val()) * time.Second,
	}, nil
}

func intOrZero(cmd *redis.StringCmd) (int64, error) {
	v, err := cmd.Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("parse call counter: %w", err)
	}
	return v, nil
}
