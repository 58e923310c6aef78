// Package types holds the data structures shared by the students service,
// its HTTP client and the synchronization coordinator. Keeping them in one
// place prevents import cycles: codec, client, storage and handlers can all
// import types without depending on each other.
package types

// Student is a student record as the service stores and returns it.
//
// Struct tags serve two purposes:
//
//  1. json:"..."  — the lowercase keys the service writes in responses.
//     Request bodies use capitalised keys (see codec.Payload); Go's JSON
//     decoder matches keys case-insensitively so the service accepts both.
//
//  2. validate:"..." — rules checked by go-playground/validator before the
//     service persists a record. Age must be a positive integer; a client
//     that could not coerce its age input sends 0, which fails here.
type Student struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"  validate:"required"`
	Email string `json:"email" validate:"required"`
	Age   int    `json:"age"   validate:"required,gt=0"`
}

// StudentFields is the operator-supplied input for create and update.
// Age is text because it comes straight from a form or a command line; the
// codec coerces it to an integer before it is sent.
type StudentFields struct {
	Name  string
	Age   string
	Email string
}
