package database

import (
	"context"
	"testing"
	"time"

	"budgettracker/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock, func() { sqlDB.Close() }
}

var goalColumns = []string{"id", "user_id", "name", "target_amount", "current_amount", "deadline", "type", "status", "icon", "created_at", "updated_at", "deleted_at"}

func TestTransactionStore_FindTransactions(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)
	end := time.Date(2024, 1, 31, 23, 59, 59, 0, time.Local)

	mock.ExpectQuery("SELECT \\* FROM `transactions` WHERE user_id = \\? AND date >= \\? AND date <= \\? AND type = \\? AND id <> \\?").
		WithArgs(uint(1), start, end, models.TransactionExpense, uint(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "category_id", "type", "amount", "date", "note"}).
			AddRow(1, 1, nil, "EXPENSE", "900.00", start, "房租").
			AddRow(2, 1, nil, "EXPENSE", "50.00", start.AddDate(0, 0, 2), ""))

	store := NewTransactionStore(db)
	list, err := store.FindTransactions(context.Background(), 1, models.TransactionFilter{
		Start:     start,
		End:       end,
		Type:      models.TransactionExpense,
		ExcludeID: 9,
	})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].Amount.Equal(decimal.NewFromInt(900)))
	assert.Equal(t, models.DefaultCategoryName, list[0].CategoryName())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSummaryStore_CreateWithinQuota(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	from := time.Date(2024, 5, 2, 0, 0, 0, 0, time.Local)
	to := from.AddDate(0, 0, 1).Add(-time.Nanosecond)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `monthly_summaries` WHERE .* FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec("INSERT INTO `monthly_summaries`").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()

	summary := &models.MonthlySummary{UserID: 1, Month: "五月", Year: "2024", TotalIncome: "1000", TotalExpense: "400", Balance: "600"}
	created, err := NewSummaryStore(db).CreateWithinQuota(context.Background(), summary, from, to, 3)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, uint(7), summary.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSummaryStore_CreateWithinQuota_LimitReached(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	from := time.Date(2024, 5, 2, 0, 0, 0, 0, time.Local)
	to := from.AddDate(0, 0, 1).Add(-time.Nanosecond)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `monthly_summaries`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectCommit()

	created, err := NewSummaryStore(db).CreateWithinQuota(context.Background(), &models.MonthlySummary{UserID: 1}, from, to, 3)
	require.NoError(t, err)
	assert.False(t, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSummaryStore_CountCreatedBetween(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `monthly_summaries`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	now := time.Now()
	n, err := NewSummaryStore(db).CountCreatedBetween(context.Background(), 1, models.DateOf(now), models.EndOfDay(now))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGoalStore_UpdateActiveGoals(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `financial_goals` WHERE .* FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(goalColumns).
			AddRow(1, 1, "旅行", "1000.00", "100.00", nil, "SAVINGS", "ACTIVE", "💰", now, now, nil).
			AddRow(2, 1, "电脑", "50.00", "40.00", nil, "PURCHASE", "ACTIVE", "🛒", now, now, nil))
	mock.ExpectExec("UPDATE `financial_goals` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `financial_goals` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var seen int
	err := NewGoalStore(db).UpdateActiveGoals(context.Background(), 1, now, func(goals []models.FinancialGoal) error {
		seen = len(goals)
		for i := range goals {
			goals[i].Deposit(decimal.NewFromInt(20))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, seen)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGoalStore_UpdateActiveGoals_NoGoals(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `financial_goals`").
		WillReturnRows(sqlmock.NewRows(goalColumns))
	mock.ExpectCommit()

	called := false
	err := NewGoalStore(db).UpdateActiveGoals(context.Background(), 1, time.Now(), func([]models.FinancialGoal) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGoalStore_UpdateGoal_NotFound(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `financial_goals`").
		WillReturnRows(sqlmock.NewRows(goalColumns))
	mock.ExpectRollback()

	_, err := NewGoalStore(db).UpdateGoal(context.Background(), 42, func(*models.FinancialGoal) error { return nil })
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetStore_DeactivateExpired(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `budgets` SET `is_active`=\\?").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	n, err := NewBudgetStore(db).DeactivateExpired(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}
