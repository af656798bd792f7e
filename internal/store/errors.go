package store

import "errors"

// Error texts are sent to clients verbatim.
var (
	ErrUsernameConflict   = errors.New("This username is already in use")
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrListConflict       = errors.New("List name already exists")
	ErrListNotFound       = errors.New("No list with that name exists")
	ErrIndexOutOfRange    = errors.New("Index out of range")
	ErrUserNotFound       = errors.New("Username doesn't exist")
)

// Specific forms of ErrInvalidCredentials and ErrListNotFound.
var (
	ErrInvalidUsername error = &conditionError{msg: "Invalid username", kind: ErrInvalidCredentials}
	ErrInvalidPassword error = &conditionError{msg: "Invalid password", kind: ErrInvalidCredentials}
	ErrNoLists         error = &conditionError{msg: "This user doesn't have any lists", kind: ErrListNotFound}
	ErrNoSuchListName  error = &conditionError{msg: "This user doesn't have such list name", kind: ErrListNotFound}
)

// conditionError carries its own client-facing text while matching a broader
// condition through errors.Is.
type conditionError struct {
	msg  string
	kind error
}

func (e *conditionError) Error() string {
	return e.msg
}

func (e *conditionError) Unwrap() error {
	return e.kind
}
