package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"unionvote/internal/ledger/models"
	"unionvote/pkg/platform/sentinel"
)

const (
	votedKeyPrefix   = "ledger:voted:"
	recordsKeyPrefix = "ledger:records:"
)

// castScript sets the member's flag for the position and adds the record in
// one step. Returns 0 when the flag was already set. The flag value is a
// constant so the member key carries no time of vote.
var castScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], ARGV[1], '1') == 0 then
	return 0
end
redis.call('SADD', KEYS[2], ARGV[2])
return 1
`)

// RedisLedger keeps one hash of voted positions per member and one unordered
// set of records per position. Both keys are touched by a single script, so a
// single-node or same-slot deployment is assumed.
type RedisLedger struct {
	client *redis.Client
}

func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{client: client}
}

func (l *RedisLedger) Name() string { return "redis" }

func (l *RedisLedger) Cast(ctx context.Context, memberID string, record models.VoteRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode vote record: %w", err)
	}

	keys := []string{votedKeyPrefix + memberID, recordsKeyPrefix + record.PositionID}
	res, err := castScript.Run(ctx, l.client, keys,
		record.PositionID,
		payload,
	).Int()
	if err != nil {
		return fmt.Errorf("run cast script: %w: %w", sentinel.ErrUnavailable, err)
	}
	if res == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (l *RedisLedger) VotedPositions(ctx context.Context, memberID string) ([]string, error) {
	positions, err := l.client.HKeys(ctx, votedKeyPrefix+memberID).Result()
	if err != nil {
		return nil, fmt.Errorf("read voted positions: %w: %w", sentinel.ErrUnavailable, err)
	}
	sort.Strings(positions)
	return positions, nil
}

func (l *RedisLedger) Records(ctx context.Context, positionID string) ([]models.VoteRecord, error) {
	raw, err := l.client.SMembers(ctx, recordsKeyPrefix+positionID).Result()
	if err != nil {
		return nil, fmt.Errorf("read vote records: %w: %w", sentinel.ErrUnavailable, err)
	}
	out := make([]models.VoteRecord, 0, len(raw))
	for _, item := range raw {
		var r models.VoteRecord
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("decode vote record: %w", err)
		}
		out = append(out, r)
	}
	models.SortRecords(out)
	return out, nil
}
