package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"go-fintrack/internal/apiclient"
	"go-fintrack/internal/model"
	"go-fintrack/internal/validation"
)

const (
	DefaultPage    = 1
	DefaultPerPage = 15

	// maxPages bounds All so a misbehaving server cannot loop it forever.
	maxPages = 1000
)

type ExpenseService struct {
	api      Requester
	validate *validation.Validator
}

func NewExpenseService(api Requester, validate *validation.Validator) *ExpenseService {
	if validate == nil {
		validate = validation.New()
	}
	return &ExpenseService{api: api, validate: validate}
}

// List fetches one page of transactions, newest first.
func (s *ExpenseService) List(ctx context.Context, filter model.TransactionFilter) (model.TransactionPage, error) {
	var out model.TransactionPage
	if err := s.validateFilter(filter); err != nil {
		return out, err
	}

	err := s.api.Do(ctx, apiclient.Request{
		Method: http.MethodGet,
		Path:   "/expenses",
		Query:  filterQuery(filter),
	}, &out)
	return out, err
}

// All walks every page matching filter. Page in filter is ignored.
func (s *ExpenseService) All(ctx context.Context, filter model.TransactionFilter) ([]model.Transaction, error) {
	var all []model.Transaction

	for page := 1; page <= maxPages; page++ {
		filter.Page = page
		result, err := s.List(ctx, filter)
		if err != nil {
			return nil, err
		}

		all = append(all, result.Expenses...)
		if len(result.Expenses) == 0 || page >= result.Pages {
			break
		}
	}

	return all, nil
}

func (s *ExpenseService) Add(ctx context.Context, in model.TransactionInput) (model.Transaction, error) {
	if in.Amount <= 0 {
		return model.Transaction{}, validation.Field("amount", "Amount must be positive")
	}
	if err := s.validate.Struct(in); err != nil {
		return model.Transaction{}, err
	}

	var out model.TransactionResponse
	if err := s.api.DoJSON(ctx, apiclient.Request{Method: http.MethodPost, Path: "/expenses"}, in, &out); err != nil {
		return model.Transaction{}, err
	}
	return out.Expense, nil
}

// Update sends only the fields set on in.
func (s *ExpenseService) Update(ctx context.Context, id int64, in model.TransactionInput) (model.Transaction, error) {
	if id <= 0 {
		return model.Transaction{}, validation.Field("id", "Transaction id is required")
	}
	if in.Amount < 0 {
		return model.Transaction{}, validation.Field("amount", "Amount must be positive")
	}
	if err := s.validate.Struct(in); err != nil {
		return model.Transaction{}, err
	}

	var out model.TransactionResponse
	if err := s.api.DoJSON(ctx, apiclient.Request{Method: http.MethodPut, Path: expensePath(id)}, in, &out); err != nil {
		return model.Transaction{}, err
	}
	return out.Expense, nil
}

func (s *ExpenseService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return validation.Field("id", "Transaction id is required")
	}
	return s.api.Do(ctx, apiclient.Request{Method: http.MethodDelete, Path: expensePath(id)}, nil)
}

func (s *ExpenseService) Categories(ctx context.Context) ([]model.Category, error) {
	var out model.CategoryList
	if err := s.api.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: "/expenses/categories"}, &out); err != nil {
		return nil, err
	}
	return out.Categories, nil
}

func (s *ExpenseService) AddCategory(ctx context.Context, in model.CategoryInput) (model.Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return model.Category{}, err
	}

	var out model.CategoryResponse
	if err := s.api.DoJSON(ctx, apiclient.Request{Method: http.MethodPost, Path: "/expenses/categories"}, in, &out); err != nil {
		return model.Category{}, err
	}
	return out.Category, nil
}

func (s *ExpenseService) validateFilter(filter model.TransactionFilter) error {
	for _, t := range filter.Types {
		if t != model.TypeExpense && t != model.TypeIncome {
			return validation.Field("type", "type must be one of: expense income")
		}
	}
	for _, m := range filter.PaymentModes {
		if !slices.Contains(model.PaymentModes, m) {
			return validation.Field("payment_mode", "payment_mode must be one of: "+strings.Join(model.PaymentModes, " "))
		}
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return validation.Field("end_date", "End date must not be before start date")
	}
	if filter.Page < 0 || filter.PerPage < 0 {
		return validation.Field("page", "Pagination values must be positive")
	}
	return nil
}

// filterQuery encodes multi-valued filters as repeated keys
// (type=expense&type=income), which is what the list endpoint expects.
func filterQuery(filter model.TransactionFilter) url.Values {
	q := url.Values{}

	page := filter.Page
	if page <= 0 {
		page = DefaultPage
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	for _, t := range filter.Types {
		q.Add("type", t)
	}
	for _, id := range filter.CategoryIDs {
		q.Add("category_id", strconv.FormatInt(id, 10))
	}
	for _, m := range filter.PaymentModes {
		q.Add("payment_mode", m)
	}
	if filter.StartDate != nil {
		q.Set("start_date", filter.StartDate.UTC().Format(time.RFC3339))
	}
	if filter.EndDate != nil {
		q.Set("end_date", filter.EndDate.UTC().Format(time.RFC3339))
	}

	return q
}

func expensePath(id int64) string {
	return fmt.Sprintf("/expenses/%d", id)
}
