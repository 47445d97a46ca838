package models

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category is an expense category.
type Category string

// Expense categories.
const (
	CategoryFood          Category = "Food & Dining"
	CategoryTransport     Category = "Transportation"
	CategoryShopping      Category = "Shopping"
	CategoryEntertainment Category = "Entertainment"
	CategoryBills         Category = "Bills & Utilities"
	CategoryHealthcare    Category = "Healthcare"
	CategoryEducation     Category = "Education"
	CategoryTravel        Category = "Travel"
	CategoryGroceries     Category = "Groceries"
	CategoryRent          Category = "Rent"
	CategoryInsurance     Category = "Insurance"
	CategoryPersonalCare  Category = "Personal Care"
	CategoryGifts         Category = "Gifts & Donations"
	CategoryOther         Category = "Other"
)

// ExpenseCategories lists every valid expense category.
var ExpenseCategories = []Category{
	CategoryFood, CategoryTransport, CategoryShopping, CategoryEntertainment,
	CategoryBills, CategoryHealthcare, CategoryEducation, CategoryTravel,
	CategoryGroceries, CategoryRent, CategoryInsurance, CategoryPersonalCare,
	CategoryGifts, CategoryOther,
}

// Valid reports whether c is a known expense category.
func (c Category) Valid() bool {
	return slices.Contains(ExpenseCategories, c)
}

// PaymentMethod is how an expense was paid.
type PaymentMethod string

// Payment methods.
const (
	PaymentCash       PaymentMethod = "Cash"
	PaymentCreditCard PaymentMethod = "Credit Card"
	PaymentDebitCard  PaymentMethod = "Debit Card"
	PaymentUPI        PaymentMethod = "UPI"
	PaymentNetBanking PaymentMethod = "Net Banking"
	PaymentOther      PaymentMethod = "Other"
)

// PaymentMethods lists every valid payment method.
var PaymentMethods = []PaymentMethod{
	PaymentCash, PaymentCreditCard, PaymentDebitCard, PaymentUPI, PaymentNetBanking, PaymentOther,
}

// Valid reports whether p is a known payment method.
func (p PaymentMethod) Valid() bool {
	return slices.Contains(PaymentMethods, p)
}

// Expense represents a financial expense record.
type Expense struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"ownerId"`
	Amount        decimal.Decimal `json:"amount"`
	Category      Category        `json:"category"`
	Description   string          `json:"description"`
	Date          time.Time       `json:"date"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	Tags          []string        `json:"tags"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// NormalizeTags trims tags and drops blanks and duplicates, keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}
