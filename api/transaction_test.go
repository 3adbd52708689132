package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTransactionRouter(svc *Services) *gin.Engine {
	h := NewTransactionHandler(svc)
	router := gin.New()
	router.Use(setUserIDMiddleware(1))
	router.POST("/transactions", h.Create)
	router.GET("/transactions/monthly-stats", h.MonthlyStats)
	router.GET("/transactions/:id", h.Get)
	router.PUT("/transactions/:id", h.Update)
	router.DELETE("/transactions/:id", h.Delete)
	return router
}

func TestTransactionHandler_CreateIncomePublishesEvent(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	svc, pub := newTestServices(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `transactions`").WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectCommit()

	body, _ := json.Marshal(map[string]interface{}{
		"type":   "income",
		"amount": "8000",
		"date":   "2024-10-01",
		"note":   " 工资 ",
	})
	req := httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	newTransactionRouter(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data struct {
			ID   uint   `json:"id"`
			Type string `json:"type"`
			Note string `json:"note"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, uint(5), resp.Data.ID)
	assert.Equal(t, "INCOME", resp.Data.Type)
	assert.Equal(t, "工资", resp.Data.Note)

	msgs := pub.published()
	require.Len(t, msgs, 1)
	assert.Equal(t, uint(1), msgs[0].UserID)
	assert.Equal(t, uint(5), msgs[0].TransactionID)
	assert.True(t, msgs[0].Amount.Equal(decimal.NewFromInt(8000)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionHandler_CreateExpenseOverIncome(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	svc, pub := newTestServices(t)

	now := time.Now()
	mock.ExpectQuery("SELECT .* FROM `transactions`").
		WillReturnRows(sqlmock.NewRows(txColumns).
			AddRow(1, 1, nil, "INCOME", "100", now, "", now, now, nil).
			AddRow(2, 1, nil, "EXPENSE", "60", now, "", now, now, nil))

	body := []byte(`{"type":"EXPENSE","amount":"50","date":"2024-10-02"}`)
	req := httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	newTransactionRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "本月收入不足")
	assert.Empty(t, pub.published())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionHandler_CreateValidation(t *testing.T) {
	_, cleanup := setupMockDB(t)
	defer cleanup()
	svc, _ := newTestServices(t)
	router := newTransactionRouter(svc)

	cases := map[string]string{
		"bad type":       `{"type":"TRANSFER","amount":"10","date":"2024-10-02"}`,
		"negative":       `{"type":"INCOME","amount":"-1","date":"2024-10-02"}`,
		"fraction":       `{"type":"INCOME","amount":"1.5","date":"2024-10-02"}`,
		"bad date":       `{"type":"INCOME","amount":"10","date":"10/02/2024"}`,
		"missing fields": `{"amount":"10"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewBufferString(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestTransactionHandler_GetOtherUsersRecord(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	svc, _ := newTestServices(t)

	now := time.Now()
	mock.ExpectQuery("SELECT .* FROM `transactions` WHERE .*`transactions`.`id` = \\?").
		WillReturnRows(sqlmock.NewRows(txColumns).
			AddRow(9, 2, nil, "EXPENSE", "120", now, "", now, now, nil))

	req := httptest.NewRequest(http.MethodGet, "/transactions/9", nil)
	w := httptest.NewRecorder()
	newTransactionRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionHandler_GetMissingRecord(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	svc, _ := newTestServices(t)

	mock.ExpectQuery("SELECT .* FROM `transactions`").
		WillReturnRows(sqlmock.NewRows(txColumns))

	req := httptest.NewRequest(http.MethodGet, "/transactions/404", nil)
	w := httptest.NewRecorder()
	newTransactionRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionHandler_DeleteOtherUsersRecord(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	svc, _ := newTestServices(t)

	now := time.Now()
	mock.ExpectQuery("SELECT .* FROM `transactions`").
		WillReturnRows(sqlmock.NewRows(txColumns).
			AddRow(9, 2, nil, "INCOME", "3000", now, "", now, now, nil))

	req := httptest.NewRequest(http.MethodDelete, "/transactions/9", nil)
	w := httptest.NewRecorder()
	newTransactionRouter(svc).ServeHTTP(w, req)

	// 未发出 DELETE 语句
	assert.Equal(t, http.StatusForbidden, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionHandler_UpdateExcludesEditedRecord(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	svc, _ := newTestServices(t)

	now := time.Now()
	mock.ExpectQuery("SELECT .* FROM `transactions`").
		WillReturnRows(sqlmock.NewRows(txColumns).
			AddRow(3, 1, nil, "EXPENSE", "500", now, "房租", now, now, nil))
	// 校验时排除正在编辑的记录
	mock.ExpectQuery("SELECT .* FROM `transactions` WHERE .*id <> \\?").
		WillReturnRows(sqlmock.NewRows(txColumns).
			AddRow(1, 1, nil, "INCOME", "1000", now, "", now, now, nil))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `transactions`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req := httptest.NewRequest(http.MethodPut, "/transactions/3", bytes.NewBufferString(`{"amount":"900"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	newTransactionRouter(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"amount":"900"`)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionHandler_MonthlyStats(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()
	svc, _ := newTestServices(t)

	now := time.Now()
	mock.ExpectQuery("SELECT .* FROM `transactions`").
		WillReturnRows(sqlmock.NewRows(txColumns).
			AddRow(1, 1, nil, "INCOME", "8000", now, "", now, now, nil).
			AddRow(2, 1, nil, "EXPENSE", "2500", now, "", now, now, nil).
			AddRow(3, 1, nil, "EXPENSE", "500", now, "", now, now, nil))

	req := httptest.NewRequest(http.MethodGet, "/transactions/monthly-stats?year=2024&month=10", nil)
	w := httptest.NewRecorder()
	newTransactionRouter(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data MonthlyStatsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2024, resp.Data.Year)
	assert.Equal(t, 10, resp.Data.Month)
	assert.Equal(t, "8000", resp.Data.TotalIncome)
	assert.Equal(t, "3000", resp.Data.TotalExpense)
	assert.Equal(t, "5000", resp.Data.Balance)
	assert.Equal(t, "1900", resp.Data.SuggestedSaving)
	assert.Equal(t, 3, resp.Data.TransactionCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionHandler_MonthlyStatsInvalidMonth(t *testing.T) {
	_, cleanup := setupMockDB(t)
	defer cleanup()
	svc, _ := newTestServices(t)

	req := httptest.NewRequest(http.MethodGet, "/transactions/monthly-stats?month=13", nil)
	w := httptest.NewRecorder()
	newTransactionRouter(svc).ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSuggestedSaving(t *testing.T) {
	d := decimal.NewFromInt
	assert.Equal(t, "1900", suggestedSaving(d(8000), d(3000)).String())
	// 支出超过收入时只计收入的 5%
	assert.Equal(t, "50", suggestedSaving(d(1000), d(2000)).String())
	assert.Equal(t, "0", suggestedSaving(d(0), d(0)).String())
	// 向下取整
	assert.Equal(t, "3", suggestedSaving(d(9), d(0)).String())
}
