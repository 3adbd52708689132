package service

import (
	"context"
	"sync"
	"time"

	"budgettracker/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type fakeLedger struct {
	txs   []models.Transaction
	calls int
}

func (l *fakeLedger) add(userID uint, typ models.TransactionType, amount int64, date time.Time) uint {
	id := uint(len(l.txs) + 1)
	l.txs = append(l.txs, models.Transaction{
		ID:     id,
		UserID: userID,
		Type:   typ,
		Amount: decimal.NewFromInt(amount),
		Date:   date,
	})
	return id
}

func (l *fakeLedger) FindTransactions(_ context.Context, userID uint, f models.TransactionFilter) ([]models.Transaction, error) {
	l.calls++
	var out []models.Transaction
	for _, tx := range l.txs {
		if tx.UserID != userID {
			continue
		}
		if !f.Start.IsZero() && tx.Date.Before(f.Start) {
			continue
		}
		if !f.End.IsZero() && tx.Date.After(f.End) {
			continue
		}
		if f.Type != "" && tx.Type != f.Type {
			continue
		}
		if f.CategoryID != nil && (tx.CategoryID == nil || *tx.CategoryID != *f.CategoryID) {
			continue
		}
		if f.ExcludeID != 0 && tx.ID == f.ExcludeID {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

type fakeGoalStore struct {
	mu    sync.Mutex
	goals map[uint]*models.FinancialGoal
}

func newFakeGoalStore(goals ...models.FinancialGoal) *fakeGoalStore {
	s := &fakeGoalStore{goals: make(map[uint]*models.FinancialGoal)}
	for i := range goals {
		g := goals[i]
		s.goals[g.ID] = &g
	}
	return s
}

func (s *fakeGoalStore) UpdateActiveGoals(_ context.Context, userID uint, asOf time.Time, fn func([]models.FinancialGoal) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var batch []models.FinancialGoal
	for id := uint(1); id <= uint(len(s.goals)); id++ {
		g, ok := s.goals[id]
		if !ok || g.UserID != userID || g.Status != models.GoalActive || g.PastDeadline(asOf) {
			continue
		}
		batch = append(batch, *g)
	}
	if len(batch) == 0 {
		return nil
	}
	if err := fn(batch); err != nil {
		return err
	}
	for i := range batch {
		g := batch[i]
		s.goals[g.ID] = &g
	}
	return nil
}

func (s *fakeGoalStore) UpdateGoal(_ context.Context, goalID uint, fn func(*models.FinancialGoal) error) (*models.FinancialGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.goals[goalID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *g
	if err := fn(&cp); err != nil {
		return nil, err
	}
	s.goals[goalID] = &cp
	return &cp, nil
}

type fakeSummaryStore struct {
	mu   sync.Mutex
	rows []models.MonthlySummary
}

func (s *fakeSummaryStore) seed(userID uint, at time.Time, n int) {
	for i := 0; i < n; i++ {
		s.rows = append(s.rows, models.MonthlySummary{ID: uint(len(s.rows) + 1), UserID: userID, CreatedAt: at})
	}
}

func (s *fakeSummaryStore) count(userID uint, from, to time.Time) int64 {
	var n int64
	for _, r := range s.rows {
		if r.UserID == userID && !r.CreatedAt.Before(from) && !r.CreatedAt.After(to) {
			n++
		}
	}
	return n
}

func (s *fakeSummaryStore) CountCreatedBetween(_ context.Context, userID uint, from, to time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count(userID, from, to), nil
}

func (s *fakeSummaryStore) CreateWithinQuota(_ context.Context, summary *models.MonthlySummary, from, to time.Time, limit int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count(summary.UserID, from, to) >= int64(limit) {
		return false, nil
	}
	summary.ID = uint(len(s.rows) + 1)
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = from.Add(time.Hour)
	}
	s.rows = append(s.rows, *summary)
	return true, nil
}

type fakeUsers map[uint]*models.User

func (f fakeUsers) FindUser(_ context.Context, id uint) (*models.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
