//go:build integration

package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unionvote/internal/anonymizer"
	"unionvote/internal/ledger/models"
	"unionvote/pkg/platform/sentinel"
	"unionvote/pkg/testutil/containers"
)

type ledgerBackend interface {
	Cast(ctx context.Context, memberID string, record models.VoteRecord) error
	VotedPositions(ctx context.Context, memberID string) ([]string, error)
	Records(ctx context.Context, positionID string) ([]models.VoteRecord, error)
}

func exerciseLedger(t *testing.T, ledger ledgerBackend) {
	ctx := context.Background()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := ledger.Cast(ctx, "M1001", record("P-CHAIR", fmt.Sprintf("C-%d", i%3), "h-m1001"))
			if err == nil {
				wins.Add(1)
				return
			}
			assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	require.NoError(t, ledger.Cast(ctx, "M1002", record("P-CHAIR", "C-1", "h-m1002")))

	records, err := ledger.Records(ctx, "P-CHAIR")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, anonymizer.VoterHandle("h-m1001"), records[0].VoterHandle)
	assert.Equal(t, anonymizer.VoterHandle("h-m1002"), records[1].VoterHandle)

	voted, err := ledger.VotedPositions(ctx, "M1001")
	require.NoError(t, err)
	assert.Equal(t, []string{"P-CHAIR"}, voted)
}

func TestRedisLedger_AtMostOnce(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	exerciseLedger(t, NewRedisLedger(rc.Client))

	flag, err := rc.Client.HGet(context.Background(), votedKeyPrefix+"M1001", "P-CHAIR").Result()
	require.NoError(t, err)
	assert.Equal(t, "1", flag)
}

func TestPostgresLedger_AtMostOnce(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	exerciseLedger(t, NewPostgresLedger(pc.DB))
}
