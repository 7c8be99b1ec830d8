package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-fintrack/internal/model"
	"go-fintrack/internal/validation"
)

func TestFilterQuery(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)

	q := filterQuery(model.TransactionFilter{
		Types:        []string{"expense", "income"},
		CategoryIDs:  []int64{3, 9},
		PaymentModes: []string{"upi"},
		StartDate:    &start,
		EndDate:      &end,
	})

	require.Equal(t, "1", q.Get("page"))
	require.Equal(t, "15", q.Get("per_page"))
	require.Equal(t, []string{"expense", "income"}, q["type"])
	require.Equal(t, []string{"3", "9"}, q["category_id"])
	require.Equal(t, []string{"upi"}, q["payment_mode"])
	require.Equal(t, "2024-01-01T00:00:00Z", q.Get("start_date"))
	require.Equal(t, "2024-01-31T23:59:59Z", q.Get("end_date"))
}

func TestExpenseServiceAll(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	api := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		page := r.URL.Query().Get("page")
		resp := model.TransactionPage{Page: 1, PerPage: 1, Total: 2, Pages: 2}
		if page == "1" {
			resp.Expenses = []model.Transaction{{ID: 1, Amount: 5}}
		} else {
			resp.Page = 2
			resp.Expenses = []model.Transaction{{ID: 2, Amount: 7}}
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	all, err := NewExpenseService(api, nil).All(context.Background(), model.TransactionFilter{PerPage: 1})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, int64(2), all[1].ID)
	require.Equal(t, int32(2), calls.Load())
}

func TestExpenseServiceAdd(t *testing.T) {
	t.Parallel()

	t.Run("posts the transaction", func(t *testing.T) {
		api := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/expenses", r.URL.Path)

			var in model.TransactionInput
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.Equal(t, 12.5, in.Amount)

			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"message":"Transaction added successfully","expense":{"id":9,"type":"expense","amount":12.5,"payment_mode":"upi","date":"2024-02-01T10:00:00"}}`))
		})

		tx, err := NewExpenseService(api, nil).Add(context.Background(), model.TransactionInput{
			Type:        model.TypeExpense,
			Amount:      12.5,
			PaymentMode: model.PaymentUPI,
		})
		require.NoError(t, err)
		require.Equal(t, int64(9), tx.ID)
		require.Equal(t, 2024, tx.Date.Year())
	})

	t.Run("rejects bad input locally", func(t *testing.T) {
		var calls atomic.Int32
		api := newAPI(t, func(w http.ResponseWriter, r *http.Request) { calls.Add(1) })
		svc := NewExpenseService(api, nil)
		ctx := context.Background()

		_, err := svc.Add(ctx, model.TransactionInput{Amount: 0})
		require.True(t, validation.IsValidationError(err))

		_, err = svc.Add(ctx, model.TransactionInput{Amount: 3, PaymentMode: "cheque"})
		require.True(t, validation.IsValidationError(err))

		_, err = svc.List(ctx, model.TransactionFilter{Types: []string{"gift"}})
		require.True(t, validation.IsValidationError(err))

		require.True(t, validation.IsValidationError(svc.Delete(ctx, 0)))
		require.Zero(t, calls.Load())
	})
}

func TestExpenseServiceUpdateAndDelete(t *testing.T) {
	t.Parallel()

	api := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/expenses/4", r.URL.Path)
		switch r.Method {
		case http.MethodPut:
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, map[string]any{"description": "lunch"}, body)
			_, _ = w.Write([]byte(`{"expense":{"id":4,"description":"lunch"}}`))
		case http.MethodDelete:
			_, _ = w.Write([]byte(`{"message":"Transaction deleted successfully"}`))
		}
	})
	svc := NewExpenseService(api, nil)

	tx, err := svc.Update(context.Background(), 4, model.TransactionInput{Description: "lunch"})
	require.NoError(t, err)
	require.Equal(t, "lunch", tx.Description)

	require.NoError(t, svc.Delete(context.Background(), 4))
}

func TestExpenseServiceCategories(t *testing.T) {
	t.Parallel()

	api := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"category":{"id":21,"name":"Pets","type":"expense"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"categories":[{"id":1,"name":"Food","type":"expense","is_default":true}]}`))
	})
	svc := NewExpenseService(api, nil)

	cats, err := svc.Categories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 1)
	require.True(t, cats[0].IsDefault)

	cat, err := svc.AddCategory(context.Background(), model.CategoryInput{Name: " Pets ", Type: model.TypeExpense})
	require.NoError(t, err)
	require.Equal(t, int64(21), cat.ID)

	_, err = svc.AddCategory(context.Background(), model.CategoryInput{Name: ""})
	require.True(t, validation.IsValidationError(err))
}
