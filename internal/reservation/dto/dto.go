package dto

import "github.com/campushub/library-circulation-service/internal/model"

type ReservationFilters struct {
	BookID    string
	StudentID string
	Status    model.ReservationStatus
	Page      int
	PageSize  int
}
