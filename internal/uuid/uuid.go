// Package uuid wraps google/uuid so that IDs bind from gin URI and
// query parameters, treating the empty string as the nil UUID.
package uuid

import (
	google_uuid "github.com/google/uuid"
)

type UUID struct {
	google_uuid.UUID
}

var Nil UUID

func New() UUID {
	return UUID{google_uuid.New()}
}

func NewString() string {
	return google_uuid.NewString()
}

// UnmarshalParam parses p with
// https://pkg.go.dev/github.com/google/uuid#Parse. An empty parameter
// binds to Nil so that optional ID filters can be left out.
func (u *UUID) UnmarshalParam(p string) error {
	if p == "" {
		*u = Nil
		return nil
	}

	parsed, e := google_uuid.Parse(p)
	if e != nil {
		return e
	}

	*u = UUID{parsed}
	return nil
}
