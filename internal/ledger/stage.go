package ledger

import "fmt"

// Stage is a lifecycle stage of a batch. The numeric values are part of the
// wire contract with collaborating systems and must not be reordered.
type Stage int

const (
	StageCreated   Stage = 0
	StageProcessed Stage = 1
	StageShipped   Stage = 2
	StageDelivered Stage = 3
	StageRejected  Stage = 4
)

// Valid reports whether the value is one of the five recognized lifecycle
// stages. Arbitrary integers are rejected before they ever reach storage.
func (s Stage) Valid() bool {
	return s >= StageCreated && s <= StageRejected
}

// Terminal reports whether reaching this stage ends the batch's mutability.
func (s Stage) Terminal() bool {
	return s == StageRejected
}

// String returns the canonical stage name.
func (s Stage) String() string {
	switch s {
	case StageCreated:
		return "CREATED"
	case StageProcessed:
		return "PROCESSED"
	case StageShipped:
		return "SHIPPED"
	case StageDelivered:
		return "DELIVERED"
	case StageRejected:
		return "REJECTED"
	default:
		return fmt.Sprintf("STAGE(%d)", int(s))
	}
}
