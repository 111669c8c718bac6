package dto

import "github.com/campushub/library-circulation-service/internal/model"

type BookFilters struct {
	Status   model.BookStatus
	Category string
	Search   string // matches title or author
	Page     int
	PageSize int
}
