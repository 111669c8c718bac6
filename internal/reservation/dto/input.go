package dto

type ReserveInput struct {
	BookID    string
	StudentID string
}

type CancelInput struct {
	ReservationID string
	Reason        string
}
