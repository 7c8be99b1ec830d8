package fakeapi

import (
	"cmp"
	"slices"
	"strings"
	"sync"
	"time"

	"go-fintrack/internal/model"
)

// naiveISO is how the API renders timestamps: no zone, microseconds.
const naiveISO = "2006-01-02T15:04:05.000000"

type userRecord struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Verified     bool
	CreatedAt    time.Time
}

func (u userRecord) profile() model.UserProfile {
	return model.UserProfile{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		IsVerified: u.Verified,
		CreatedAt:  u.CreatedAt.UTC().Format(naiveISO),
	}
}

type otpRecord struct {
	Code    string
	Expires time.Time
}

type resetRecord struct {
	UserID  int64
	Expires time.Time
}

type expenseRecord struct {
	UserID int64
	model.Transaction
}

// categoryRecord with UserID 0 is a default shared by every user.
type categoryRecord struct {
	UserID int64
	model.Category
}

var defaultCategories = []model.Category{
	{Name: "Food", Type: model.TypeExpense},
	{Name: "Transport", Type: model.TypeExpense},
	{Name: "Shopping", Type: model.TypeExpense},
	{Name: "Bills", Type: model.TypeExpense},
	{Name: "Entertainment", Type: model.TypeExpense},
	{Name: "Health", Type: model.TypeExpense},
	{Name: "Salary", Type: model.TypeIncome},
	{Name: "Freelance", Type: model.TypeIncome},
	{Name: "Investments", Type: model.TypeIncome},
}

// Store is the fake API's in-memory database.
type Store struct {
	mu sync.Mutex

	nextUserID     int64
	nextExpenseID  int64
	nextCategoryID int64

	users      map[int64]*userRecord
	usersEmail map[string]int64
	otps       map[int64]otpRecord
	resets     map[string]resetRecord
	expenses   map[int64]*expenseRecord
	categories map[int64]*categoryRecord
}

func NewStore() *Store {
	s := &Store{
		users:      map[int64]*userRecord{},
		usersEmail: map[string]int64{},
		otps:       map[int64]otpRecord{},
		resets:     map[string]resetRecord{},
		expenses:   map[int64]*expenseRecord{},
		categories: map[int64]*categoryRecord{},
	}

	for _, c := range defaultCategories {
		s.nextCategoryID++
		c.ID = s.nextCategoryID
		c.IsDefault = true
		s.categories[c.ID] = &categoryRecord{Category: c}
	}

	return s
}

func (s *Store) CreateUser(name string, email string, passwordHash string, verified bool, now time.Time) (userRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(email)
	if _, exists := s.usersEmail[key]; exists {
		return userRecord{}, model.ErrUserAlreadyExists
	}

	s.nextUserID++
	u := &userRecord{
		ID:           s.nextUserID,
		Name:         name,
		Email:        key,
		PasswordHash: passwordHash,
		Verified:     verified,
		CreatedAt:    now.UTC(),
	}
	s.users[u.ID] = u
	s.usersEmail[key] = u.ID

	return *u, nil
}

func (s *Store) UserByEmail(email string) (userRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, exists := s.usersEmail[strings.ToLower(strings.TrimSpace(email))]
	if !exists {
		return userRecord{}, model.ErrUserNotFound
	}
	return *s.users[id], nil
}

func (s *Store) UserByID(id int64) (userRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, exists := s.users[id]
	if !exists {
		return userRecord{}, model.ErrUserNotFound
	}
	return *u, nil
}

func (s *Store) MarkVerified(id int64) (userRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, exists := s.users[id]
	if !exists {
		return userRecord{}, model.ErrUserNotFound
	}
	u.Verified = true
	return *u, nil
}

func (s *Store) SetPassword(id int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, exists := s.users[id]
	if !exists {
		return model.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

// PutOTP replaces any outstanding code for the user.
func (s *Store) PutOTP(userID int64, code string, expires time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otps[userID] = otpRecord{Code: code, Expires: expires}
}

// ConsumeOTP checks and burns the user's code.
func (s *Store) ConsumeOTP(userID int64, code string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.otps[userID]
	if !exists || rec.Code != code {
		return model.ErrInvalidOTP
	}
	if now.After(rec.Expires) {
		return model.ErrOTPExpired
	}
	delete(s.otps, userID)
	return nil
}

func (s *Store) PutResetToken(token string, userID int64, expires time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets[token] = resetRecord{UserID: userID, Expires: expires}
}

// ResetTokenOwner returns the user a live reset token belongs to.
func (s *Store) ResetTokenOwner(token string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.resets[token]
	if !exists {
		return 0, model.ErrTokenNotFound
	}
	if now.After(rec.Expires) {
		delete(s.resets, token)
		return 0, model.ErrTokenExpired
	}
	return rec.UserID, nil
}

func (s *Store) DeleteResetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.resets, token)
}

// usableCategoryLocked reports whether the user may file a transaction of
// txType under categoryID.
func (s *Store) usableCategoryLocked(userID int64, categoryID int64, txType string) (categoryRecord, bool) {
	c, exists := s.categories[categoryID]
	if !exists || (c.UserID != 0 && c.UserID != userID) || c.Type != txType {
		return categoryRecord{}, false
	}
	return *c, true
}

func (s *Store) AddExpense(userID int64, tx model.Transaction) (model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.CategoryID != nil {
		if _, ok := s.usableCategoryLocked(userID, *tx.CategoryID, tx.Type); !ok {
			return model.Transaction{}, model.ErrInvalidCategory
		}
	}

	s.nextExpenseID++
	tx.ID = s.nextExpenseID
	s.expenses[tx.ID] = &expenseRecord{UserID: userID, Transaction: tx}

	return s.renderLocked(tx), nil
}

// UpdateExpense applies mutate to a copy of the user's transaction and stores
// it if the resulting category is still valid.
func (s *Store) UpdateExpense(userID int64, id int64, mutate func(*model.Transaction)) (model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.expenses[id]
	if !exists || rec.UserID != userID {
		return model.Transaction{}, model.ErrTransactionNotFound
	}

	updated := rec.Transaction
	mutate(&updated)

	if updated.CategoryID != nil {
		if _, ok := s.usableCategoryLocked(userID, *updated.CategoryID, updated.Type); !ok {
			return model.Transaction{}, model.ErrInvalidCategory
		}
	}

	rec.Transaction = updated
	return s.renderLocked(updated), nil
}

func (s *Store) DeleteExpense(userID int64, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.expenses[id]
	if !exists || rec.UserID != userID {
		return model.ErrTransactionNotFound
	}
	delete(s.expenses, id)
	return nil
}

type expenseQuery struct {
	Types        []string
	CategoryIDs  []int64
	PaymentModes []string
	Start, End   *time.Time
}

func (q expenseQuery) match(tx model.Transaction) bool {
	if len(q.Types) > 0 && !slices.Contains(q.Types, tx.Type) {
		return false
	}
	if len(q.CategoryIDs) > 0 && (tx.CategoryID == nil || !slices.Contains(q.CategoryIDs, *tx.CategoryID)) {
		return false
	}
	if len(q.PaymentModes) > 0 && !slices.Contains(q.PaymentModes, tx.PaymentMode) {
		return false
	}
	if q.Start != nil && q.End != nil && (tx.Date.Before(*q.Start) || tx.Date.After(*q.End)) {
		return false
	}
	return true
}

// ListExpenses returns the matching transactions newest first, plus the total
// before pagination.
func (s *Store) ListExpenses(userID int64, q expenseQuery, page int, perPage int) ([]model.Transaction, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]model.Transaction, 0)
	for _, rec := range s.expenses {
		if rec.UserID == userID && q.match(rec.Transaction) {
			matched = append(matched, s.renderLocked(rec.Transaction))
		}
	}

	slices.SortFunc(matched, func(a, b model.Transaction) int {
		if c := b.Date.Compare(a.Date.Time); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	total := len(matched)
	start := (page - 1) * perPage
	if start >= total {
		return []model.Transaction{}, total
	}
	end := min(start+perPage, total)
	return matched[start:end], total
}

// Categories returns defaults plus the user's own, one per (name, type)
// ignoring case, preferring the user's, sorted by name.
func (s *Store) Categories(userID int64) []model.Category {
	s.mu.Lock()
	defer s.mu.Unlock()

	type key struct{ name, typ string }
	seen := map[key]categoryRecord{}
	for _, c := range s.categories {
		if c.UserID != 0 && c.UserID != userID {
			continue
		}
		k := key{strings.ToLower(c.Name), c.Type}
		if prev, exists := seen[k]; !exists || (c.UserID == userID && prev.UserID != userID) {
			seen[k] = *c
		}
	}

	out := make([]model.Category, 0, len(seen))
	for _, c := range seen {
		out = append(out, c.Category)
	}
	slices.SortFunc(out, func(a, b model.Category) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (s *Store) AddCategory(userID int64, name string, typ string) (model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.categories {
		if c.Name == name && c.Type == typ && (c.UserID == 0 || c.UserID == userID) {
			return model.Category{}, model.ErrCategoryExists
		}
	}

	s.nextCategoryID++
	c := model.Category{ID: s.nextCategoryID, Name: name, Type: typ}
	s.categories[c.ID] = &categoryRecord{UserID: userID, Category: c}
	return c, nil
}

func (s *Store) renderLocked(tx model.Transaction) model.Transaction {
	tx.Category = ""
	if tx.CategoryID != nil {
		if c, exists := s.categories[*tx.CategoryID]; exists {
			tx.Category = c.Name
		}
	}
	return tx
}
