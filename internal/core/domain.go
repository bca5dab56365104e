package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

const (
	Income  CategoryType = "income"
	Expense CategoryType = "expense"
)

const (
	NotifyBudgetWarning  NotificationType = "budget_warning"
	NotifyBudgetExceeded NotificationType = "budget_exceeded"
	NotifyRecurringTx    NotificationType = "recurring_tx_generated"
	NotifyBillReminder   NotificationType = "bill_reminder"
	NotifyInfo           NotificationType = "info"
)

type (
	Frequency        string
	CategoryType     string
	NotificationType string

	User struct {
		ID             int64  `json:"id"`
		Email          string `json:"email"`
		HashedPassword string `json:"-"`
		IsActive       bool   `json:"is_active"`
	}

	Category struct {
		ID      int64        `json:"id"`
		Name    string       `json:"name"`
		Type    CategoryType `json:"type"`
		OwnerID int64        `json:"owner_id"`
	}

	Transaction struct {
		ID          int64           `json:"id"`
		Amount      decimal.Decimal `json:"amount"`
		Type        CategoryType    `json:"type"`
		Date        Date            `json:"date"`
		Description string          `json:"description,omitempty"`
		CategoryID  int64           `json:"category_id"`
		OwnerID     int64           `json:"owner_id"`
		// RuleID records which recurring rule generated this transaction.
		// Zero for transactions created directly through the API.
		RuleID    int64     `json:"rule_id,omitempty"`
		CreatedAt time.Time `json:"created_at"`
	}

	Budget struct {
		ID         int64           `json:"id"`
		Year       int             `json:"year"`
		Month      int             `json:"month"`
		Amount     decimal.Decimal `json:"amount"`
		OwnerID    int64           `json:"owner_id"`
		CategoryID int64           `json:"category_id,omitempty"` // 0 = overall monthly budget
	}

	RecurringRule struct {
		ID          int64           `json:"id"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		StartDate   Date            `json:"start_date"`
		EndDate     Date            `json:"end_date,omitempty"`
		Frequency   Frequency       `json:"frequency"`
		// LastCreatedDate is the cursor: the date of the most recently
		// generated occurrence. Zero if none has been generated yet.
		LastCreatedDate Date  `json:"last_created_date,omitempty"`
		IsActive        bool  `json:"is_active"`
		OwnerID         int64 `json:"owner_id"`
		CategoryID      int64 `json:"category_id"`
	}

	Notification struct {
		ID                int64            `json:"id"`
		UserID            int64            `json:"user_id"`
		Type              NotificationType `json:"type"`
		Message           string           `json:"message"`
		IsRead            bool             `json:"is_read"`
		CreatedAt         time.Time        `json:"created_at"`
		RelatedEntityID   int64            `json:"related_entity_id,omitempty"`
		RelatedEntityType string           `json:"related_entity_type,omitempty"`
	}
)

var (
	// ErrNotFound is returned by storage lookups when the row does not
	// exist or is owned by a different user.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an insert or delete violates a
	// uniqueness or reference constraint.
	ErrConflict = errors.New("conflict")

	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidType      = errors.New("invalid category type")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyName        = errors.New("empty name")
	ErrEndBeforeStart   = errors.New("end date cannot be before start date")
)

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (t CategoryType) Valid() bool {
	return t == Income || t == Expense
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

func (t Transaction) Validate() error {
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if t.Date.IsZero() {
		return errors.New("date is required")
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if t.CategoryID == 0 {
		return errors.New("category is required")
	}
	return nil
}

func (b Budget) Validate() error {
	if !b.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if b.Year < 1900 {
		return errors.New("invalid year")
	}
	if b.Month < 1 || b.Month > 12 {
		return errors.New("invalid month")
	}
	return nil
}

func (r RecurringRule) Validate() error {
	if strings.TrimSpace(r.Description) == "" {
		return ErrEmptyDescription
	}
	if len(r.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if r.StartDate.IsZero() {
		return errors.New("start date is required")
	}
	if !r.EndDate.IsZero() && r.EndDate.Before(r.StartDate) {
		return ErrEndBeforeStart
	}
	if !r.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if r.CategoryID == 0 {
		return errors.New("category is required")
	}
	return nil
}
