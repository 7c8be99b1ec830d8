package fakeapi

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"go-fintrack/internal/middleware"
	"go-fintrack/internal/model"
	"go-fintrack/pkg/apierror"
)

const (
	defaultPage    = 1
	defaultPerPage = 15
)

// transactionPayload distinguishes absent fields from zero values so PUT
// only touches what the client sent.
type transactionPayload struct {
	Type        *string  `json:"type"`
	Description *string  `json:"description"`
	Amount      *float64 `json:"amount"`
	CategoryID  *int64   `json:"category_id"`
	PaymentMode *string  `json:"payment_mode"`
	Date        *string  `json:"date"`
}

type ExpenseHandler struct {
	store *Store
	now   func() time.Time
}

func NewExpenseHandler(store *Store, now func() time.Time) *ExpenseHandler {
	if now == nil {
		now = time.Now
	}
	return &ExpenseHandler{store: store, now: now}
}

func (h *ExpenseHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	page := queryInt(q.Get("page"), defaultPage)
	perPage := queryInt(q.Get("per_page"), defaultPerPage)

	filter := expenseQuery{
		Types:        q["type"],
		PaymentModes: q["payment_mode"],
	}
	for _, raw := range q["category_id"] {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filter.CategoryIDs = append(filter.CategoryIDs, id)
		}
	}

	if start, end := q.Get("start_date"), q.Get("end_date"); start != "" && end != "" {
		from, err := model.ParseTimestamp(start)
		if err != nil {
			writeError(w, badRequest("Invalid date format"))
			return
		}
		to, err := model.ParseTimestamp(end)
		if err != nil {
			writeError(w, badRequest("Invalid date format"))
			return
		}
		filter.Start, filter.End = &from.Time, &to.Time
	}

	items, total := h.store.ListExpenses(userID, filter, page, perPage)
	pages := 0
	if total > 0 {
		pages = (total + perPage - 1) / perPage
	}

	writeJSON(w, http.StatusOK, model.TransactionPage{
		Expenses: items,
		Total:    total,
		Page:     page,
		PerPage:  perPage,
		Pages:    pages,
	})
}

func (h *ExpenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var in transactionPayload
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	if in.Amount == nil {
		writeError(w, badRequest("Amount is required"))
		return
	}
	if *in.Amount <= 0 {
		writeError(w, badRequest("Amount must be positive"))
		return
	}

	tx := model.Transaction{
		Type:        model.TypeExpense,
		Amount:      *in.Amount,
		CategoryID:  in.CategoryID,
		PaymentMode: model.PaymentCash,
		Date:        model.NewTimestamp(h.now().UTC()),
	}
	if in.Type != nil && isTransactionType(*in.Type) {
		tx.Type = *in.Type
	}
	if in.Description != nil {
		tx.Description = *in.Description
	}
	if in.PaymentMode != nil && slices.Contains(model.PaymentModes, *in.PaymentMode) {
		tx.PaymentMode = *in.PaymentMode
	}
	if in.Date != nil && *in.Date != "" {
		date, err := parsePayloadDate(*in.Date)
		if err != nil {
			writeError(w, err)
			return
		}
		tx.Date = date
	}

	created, err := h.store.AddExpense(userID, tx)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, model.TransactionResponse{
		Message: "Transaction added successfully",
		Expense: created,
	})
}

func (h *ExpenseHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, model.ErrTransactionNotFound)
		return
	}

	var in transactionPayload
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	if in.Amount != nil && *in.Amount <= 0 {
		writeError(w, badRequest("Amount must be positive"))
		return
	}

	var date *model.Timestamp
	if in.Date != nil && *in.Date != "" {
		parsed, err := parsePayloadDate(*in.Date)
		if err != nil {
			writeError(w, err)
			return
		}
		date = &parsed
	}

	updated, err := h.store.UpdateExpense(userID, id, func(tx *model.Transaction) {
		if in.Type != nil && isTransactionType(*in.Type) {
			tx.Type = *in.Type
		}
		if in.Description != nil {
			tx.Description = *in.Description
		}
		if in.Amount != nil {
			tx.Amount = *in.Amount
		}
		if in.CategoryID != nil {
			tx.CategoryID = in.CategoryID
			if *in.CategoryID == 0 {
				tx.CategoryID = nil
			}
		}
		if in.PaymentMode != nil && slices.Contains(model.PaymentModes, *in.PaymentMode) {
			tx.PaymentMode = *in.PaymentMode
		}
		if date != nil {
			tx.Date = *date
		}
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.TransactionResponse{
		Message: "Transaction updated successfully",
		Expense: updated,
	})
}

func (h *ExpenseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, model.ErrTransactionNotFound)
		return
	}

	if err := h.store.DeleteExpense(userID, id); err != nil {
		writeError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, "Transaction deleted successfully")
}

func (h *ExpenseHandler) Categories(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, model.CategoryList{Categories: h.store.Categories(userID)})
}

func (h *ExpenseHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var in model.CategoryInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		writeError(w, badRequest("Name is required"))
		return
	}

	typ := in.Type
	if !isTransactionType(typ) {
		typ = model.TypeExpense
	}

	created, err := h.store.AddCategory(userID, name, typ)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, model.CategoryResponse{
		Message:  "Category added successfully",
		Category: created,
	})
}

func currentUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, apierror.New(apierror.CodeUnauthorized, "Authentication required", "", http.StatusUnauthorized))
		return 0, false
	}
	return claims.UserID, true
}

func parsePayloadDate(raw string) (model.Timestamp, error) {
	ts, err := model.ParseTimestamp(raw)
	if err != nil {
		return model.Timestamp{}, badRequest("Invalid date format. Use ISO format (YYYY-MM-DDTHH:MM:SS)")
	}
	return ts, nil
}

func isTransactionType(t string) bool {
	return t == model.TypeExpense || t == model.TypeIncome
}

func queryInt(raw string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
