package inventory

import "errors"

var (
	ErrBookNotFound       = errors.New("book not found")
	ErrNotAvailable       = errors.New("no available copies")
	ErrOverCapacity       = errors.New("available copies already at total copies")
	ErrDuplicateAccession = errors.New("accession number already registered")
)
