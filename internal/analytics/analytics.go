// Package analytics reshapes a list of transactions into the series the
// summary views print: totals per category, per month and overall.
package analytics

import (
	"sort"
	"time"

	"go-fintrack/internal/model"
)

const (
	Uncategorized = "Uncategorized"
	MonthLayout   = "Jan 2006"
)

type CategoryTotal struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// CategoryBreakdown holds expense and income for one category.
type CategoryBreakdown struct {
	Category string  `json:"category"`
	Expense  float64 `json:"expense"`
	Income   float64 `json:"income"`
}

func (c CategoryBreakdown) Total() float64 { return c.Expense + c.Income }

type MonthTotal struct {
	Month   string    `json:"month"`
	Start   time.Time `json:"start"`
	Expense float64   `json:"expense"`
	Income  float64   `json:"income"`
}

type Summary struct {
	TotalIncome      float64 `json:"total_income"`
	TotalExpenses    float64 `json:"total_expenses"`
	NetAmount        float64 `json:"net_amount"`
	TransactionCount int     `json:"transaction_count"`
}

type Report struct {
	Summary  Summary             `json:"summary"`
	Expenses []CategoryTotal     `json:"expenses_by_category"`
	Income   []CategoryTotal     `json:"income_by_category"`
	Combined []CategoryBreakdown `json:"by_category"`
	Monthly  []MonthTotal        `json:"monthly"`
}

// Build computes every series at once. Categories are resolved by id against
// cats; transactions with no matching category count as Uncategorized.
func Build(txs []model.Transaction, cats []model.Category) Report {
	return Report{
		Summary:  Summarize(txs),
		Expenses: ByCategory(txs, cats, model.TypeExpense),
		Income:   ByCategory(txs, cats, model.TypeIncome),
		Combined: Combined(txs, cats),
		Monthly:  Monthly(txs),
	}
}

func Summarize(txs []model.Transaction) Summary {
	var s Summary
	for _, tx := range txs {
		switch tx.Type {
		case model.TypeExpense:
			s.TotalExpenses += tx.Amount
		case model.TypeIncome:
			s.TotalIncome += tx.Amount
		}
	}
	s.NetAmount = s.TotalIncome - s.TotalExpenses
	s.TransactionCount = len(txs)
	return s
}

// ByCategory totals transactions of txType per category, largest first.
func ByCategory(txs []model.Transaction, cats []model.Category, txType string) []CategoryTotal {
	names := categoryNames(cats)
	totals := map[string]float64{}
	for _, tx := range txs {
		if tx.Type != txType {
			continue
		}
		totals[categoryName(tx, names)] += tx.Amount
	}

	out := make([]CategoryTotal, 0, len(totals))
	for name, amount := range totals {
		out = append(out, CategoryTotal{Category: name, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Combined merges expense and income per category, ordered by their sum.
func Combined(txs []model.Transaction, cats []model.Category) []CategoryBreakdown {
	names := categoryNames(cats)
	byName := map[string]*CategoryBreakdown{}
	for _, tx := range txs {
		name := categoryName(tx, names)
		row, ok := byName[name]
		if !ok {
			row = &CategoryBreakdown{Category: name}
			byName[name] = row
		}
		switch tx.Type {
		case model.TypeExpense:
			row.Expense += tx.Amount
		case model.TypeIncome:
			row.Income += tx.Amount
		}
	}

	out := make([]CategoryBreakdown, 0, len(byName))
	for _, row := range byName {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total() != out[j].Total() {
			return out[i].Total() > out[j].Total()
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Monthly groups by calendar month (UTC), oldest first. Only months that have
// transactions appear.
func Monthly(txs []model.Transaction) []MonthTotal {
	byMonth := map[time.Time]*MonthTotal{}
	for _, tx := range txs {
		d := tx.Date.UTC()
		start := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
		row, ok := byMonth[start]
		if !ok {
			row = &MonthTotal{Month: start.Format(MonthLayout), Start: start}
			byMonth[start] = row
		}
		switch tx.Type {
		case model.TypeExpense:
			row.Expense += tx.Amount
		case model.TypeIncome:
			row.Income += tx.Amount
		}
	}

	out := make([]MonthTotal, 0, len(byMonth))
	for _, row := range byMonth {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func categoryNames(cats []model.Category) map[int64]string {
	names := make(map[int64]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	return names
}

func categoryName(tx model.Transaction, names map[int64]string) string {
	if tx.CategoryID != nil {
		if name, ok := names[*tx.CategoryID]; ok {
			return name
		}
	}
	return Uncategorized
}
