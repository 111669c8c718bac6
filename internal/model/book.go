package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookStatus string

const (
	BookStatusAvailable BookStatus = "available"
	BookStatusBorrowed  BookStatus = "borrowed"
	BookStatusLost      BookStatus = "lost"
	BookStatusDamaged   BookStatus = "damaged"
	BookStatusWithdrawn BookStatus = "withdrawn"
)

// BookCondition is a closed enumeration; free-form condition notes are not
// accepted by the engine.
type BookCondition string

const (
	ConditionGood    BookCondition = "good"
	ConditionFair    BookCondition = "fair"
	ConditionWorn    BookCondition = "worn"
	ConditionDamaged BookCondition = "damaged"
)

func ValidBookCondition(c BookCondition) bool {
	switch c {
	case ConditionGood, ConditionFair, ConditionWorn, ConditionDamaged:
		return true
	}
	return false
}

// Book tracks physical copies of a title. AvailableCopies is mutated only
// through the inventory repository's increment/decrement operations.
type Book struct {
	ID              string          `db:"id"`
	AccessionNumber string          `db:"accession_number"`
	Title           string          `db:"title"`
	Author          string          `db:"author"`
	ISBN            *string         `db:"isbn"`
	Publisher       *string         `db:"publisher"`
	Category        *string         `db:"category"`
	Price           decimal.Decimal `db:"price"`
	Copies          int             `db:"copies"`
	AvailableCopies int             `db:"available_copies"`
	Status          BookStatus      `db:"status"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}
