package model

import "time"

const (
	TypeExpense = "expense"
	TypeIncome  = "income"
)

const (
	PaymentCash       = "cash"
	PaymentDebitCard  = "debit_card"
	PaymentCreditCard = "credit_card"
	PaymentUPI        = "upi"
	PaymentNetBanking = "net_banking"
)

var PaymentModes = []string{PaymentCash, PaymentDebitCard, PaymentCreditCard, PaymentUPI, PaymentNetBanking}

type Transaction struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	CategoryID  *int64    `json:"category_id"`
	Category    string    `json:"category,omitempty"`
	PaymentMode string    `json:"payment_mode"`
	Date        Timestamp `json:"date"`
}

type TransactionInput struct {
	Type        string     `json:"type,omitempty" validate:"omitempty,oneof=expense income"`
	Description string     `json:"description,omitempty" validate:"max=255"`
	Amount      float64    `json:"amount,omitempty" validate:"omitempty,gt=0"`
	CategoryID  *int64     `json:"category_id,omitempty"`
	PaymentMode string     `json:"payment_mode,omitempty" validate:"omitempty,oneof=cash debit_card credit_card upi net_banking"`
	Date        *Timestamp `json:"date,omitempty"`
}

type Category struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	IsDefault bool   `json:"is_default"`
}

type CategoryInput struct {
	Name string `json:"name" validate:"required,max=50"`
	Type string `json:"type,omitempty" validate:"omitempty,oneof=expense income"`
}

// TransactionFilter mirrors the list endpoint's query parameters. Slice
// fields are sent as repeated keys.
type TransactionFilter struct {
	Types        []string
	CategoryIDs  []int64
	PaymentModes []string
	StartDate    *time.Time
	EndDate      *time.Time
	Page         int
	PerPage      int
}

type TransactionPage struct {
	Expenses []Transaction `json:"expenses"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PerPage  int           `json:"per_page"`
	Pages    int           `json:"pages"`
}

type TransactionResponse struct {
	Message string      `json:"message"`
	Expense Transaction `json:"expense"`
}

type CategoryResponse struct {
	Message  string   `json:"message"`
	Category Category `json:"category"`
}

type CategoryList struct {
	Categories []Category `json:"categories"`
}
