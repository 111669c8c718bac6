package dto

import "github.com/shopspring/decimal"

type AddBookInput struct {
	AccessionNumber string
	Title           string
	Author          string
	ISBN            *string
	Publisher       *string
	Category        *string
	Price           decimal.Decimal
	Copies          int
}
