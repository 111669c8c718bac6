package reservation

import "errors"

var (
	ErrBookNotFound           = errors.New("book not found")
	ErrBookNotReservable      = errors.New("book is withdrawn or lost")
	ErrBookCurrentlyAvailable = errors.New("book has a free copy, reservation not needed")
	ErrDuplicateReservation   = errors.New("student already holds an active reservation for this book")
	ErrReservationNotFound    = errors.New("reservation not found")
	ErrReservationNotActive   = errors.New("reservation is not pending or awaiting pickup")
	ErrNotAwaitingPickup      = errors.New("reservation is not awaiting pickup")
	ErrReservationExpired     = errors.New("reservation collection window has expired")
)
