package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"unionvote/internal/verification/models"
	"unionvote/pkg/platform/sentinel"
)

const contactKey = "email:m1001@union.example"

type InMemorySessionStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	now   time.Time
}

func TestInMemorySessionStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemorySessionStoreSuite))
}

func (s *InMemorySessionStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func (s *InMemorySessionStoreSuite) newSession(code string, createdAt time.Time) models.Session {
	return models.Session{
		ID:        uuid.New(),
		Contact:   contactKey,
		Purpose:   models.PurposeLogin,
		Code:      code,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(5 * time.Minute),
	}
}

func (s *InMemorySessionStoreSuite) TestCreateInvalidatesPriorSession() {
	first := s.newSession("111111", s.now)
	n, err := s.store.Create(s.ctx, first)
	s.Require().NoError(err)
	s.Zero(n)

	second := s.newSession("222222", s.now.Add(time.Second))
	n, err = s.store.Create(s.ctx, second)
	s.Require().NoError(err)
	s.Equal(1, n)

	active, err := s.store.FindActive(s.ctx, contactKey, models.PurposeLogin, s.now.Add(2*time.Second))
	s.Require().NoError(err)
	s.Equal(second.ID, active.ID)
	s.Equal("222222", active.Code)

	err = s.store.Consume(s.ctx, first, s.now.Add(2*time.Second), 5)
	s.ErrorIs(err, sentinel.ErrNotFound, "invalidated session must not be consumable")
}

func (s *InMemorySessionStoreSuite) TestPurposesAreIndependent() {
	login := s.newSession("111111", s.now)
	vote := s.newSession("222222", s.now)
	vote.Purpose = models.PurposeVote

	_, err := s.store.Create(s.ctx, login)
	s.Require().NoError(err)
	_, err = s.store.Create(s.ctx, vote)
	s.Require().NoError(err)

	active, err := s.store.FindActive(s.ctx, contactKey, models.PurposeLogin, s.now)
	s.Require().NoError(err)
	s.Equal(login.ID, active.ID)
}

func (s *InMemorySessionStoreSuite) TestExpiredSessionIsNotFound() {
	sess := s.newSession("000000", s.now)
	_, err := s.store.Create(s.ctx, sess)
	s.Require().NoError(err)

	_, err = s.store.FindActive(s.ctx, contactKey, models.PurposeLogin, sess.ExpiresAt.Add(time.Second))
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindActive(s.ctx, contactKey, models.PurposeLogin, sess.ExpiresAt)
	s.ErrorIs(err, sentinel.ErrNotFound, "expiry boundary is exclusive")

	err = s.store.Consume(s.ctx, sess, sess.ExpiresAt.Add(time.Second), 5)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemorySessionStoreSuite) TestIncrementAttemptsAndLock() {
	sess := s.newSession("123456", s.now)
	_, err := s.store.Create(s.ctx, sess)
	s.Require().NoError(err)

	for i := 1; i <= 3; i++ {
		n, err := s.store.IncrementAttempts(s.ctx, contactKey, models.PurposeLogin, s.now)
		s.Require().NoError(err)
		s.Equal(i, n)
	}

	err = s.store.Consume(s.ctx, sess, s.now, 3)
	s.ErrorIs(err, sentinel.ErrLocked)

	active, err := s.store.FindActive(s.ctx, contactKey, models.PurposeLogin, s.now)
	s.Require().NoError(err)
	s.False(active.Consumed, "locked session stays unconsumed until replaced")
}

func (s *InMemorySessionStoreSuite) TestIncrementAttemptsWithoutSession() {
	_, err := s.store.IncrementAttempts(s.ctx, contactKey, models.PurposeLogin, s.now)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemorySessionStoreSuite) TestConsumeOnce() {
	sess := s.newSession("123456", s.now)
	_, err := s.store.Create(s.ctx, sess)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Consume(s.ctx, sess, s.now, 5))
	s.ErrorIs(s.store.Consume(s.ctx, sess, s.now, 5), sentinel.ErrNotFound)

	_, err = s.store.FindActive(s.ctx, contactKey, models.PurposeLogin, s.now)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemorySessionStoreSuite) TestConcurrentConsumeHasOneWinner() {
	sess := s.newSession("123456", s.now)
	_, err := s.store.Create(s.ctx, sess)
	s.Require().NoError(err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.store.Consume(s.ctx, sess, s.now, 5) == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
}

func (s *InMemorySessionStoreSuite) TestInvalidateActive() {
	_, err := s.store.Create(s.ctx, s.newSession("123456", s.now))
	s.Require().NoError(err)

	n, err := s.store.InvalidateActive(s.ctx, contactKey, models.PurposeLogin, s.now)
	s.Require().NoError(err)
	s.Equal(1, n)

	_, err = s.store.FindActive(s.ctx, contactKey, models.PurposeLogin, s.now)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemorySessionStoreSuite) TestDeleteExpired() {
	_, err := s.store.Create(s.ctx, s.newSession("111111", s.now))
	s.Require().NoError(err)
	live := s.newSession("222222", s.now.Add(time.Minute))
	live.Contact = "sms:+447700900123"
	_, err = s.store.Create(s.ctx, live)
	s.Require().NoError(err)

	removed, err := s.store.DeleteExpired(s.ctx, s.now.Add(5*time.Minute+time.Second))
	s.Require().NoError(err)
	s.Equal(1, removed)

	_, err = s.store.FindActive(s.ctx, live.Contact, models.PurposeLogin, s.now.Add(5*time.Minute+time.Second))
	s.NoError(err)
}
