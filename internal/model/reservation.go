package model

import "time"

type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusAvailable ReservationStatus = "available"
	ReservationStatusFulfilled ReservationStatus = "fulfilled"
	ReservationStatusExpired   ReservationStatus = "expired"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// Reservation is a standing request for a copy of a currently exhausted
// title. QueuePosition is dense and 1-based among the pending rows of a book:
// the pending set always holds positions 1..N with no gaps or duplicates.
type Reservation struct {
	ID              string            `db:"id"`
	BookID          string            `db:"book_id"`
	StudentID       string            `db:"student_id"`
	ReservationDate time.Time         `db:"reservation_date"`
	ExpiryDate      time.Time         `db:"expiry_date"`
	Status          ReservationStatus `db:"status"`
	QueuePosition   int               `db:"queue_position"`
	AvailableDate   *time.Time        `db:"available_date"`
	FulfilledDate   *time.Time        `db:"fulfilled_date"`
	CancelledDate   *time.Time        `db:"cancelled_date"`
	CancelReason    *string           `db:"cancel_reason"`
	CreatedAt       time.Time         `db:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at"`
}

// ActiveReservation reports whether the row still holds the student's place:
// pending in the queue, or promoted and awaiting pickup.
func (r *Reservation) ActiveReservation() bool {
	return r.Status == ReservationStatusPending || r.Status == ReservationStatusAvailable
}
