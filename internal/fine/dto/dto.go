package dto

import "github.com/campushub/library-circulation-service/internal/model"

type FineFilters struct {
	StudentID string
	Status    model.FineStatus
	Reason    model.FineReason
	Page      int
	PageSize  int
}
