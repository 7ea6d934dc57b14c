package entitystore

// ErrEntityNotFound is returned when an entity is absent from the store.
// Callers that treat absence as expected should use GetSafe instead.
type ErrEntityNotFound struct {
	Prefix string
	ID     string
}

func NewErrEntityNotFound(prefix, id string) ErrEntityNotFound {
	return ErrEntityNotFound{Prefix: prefix, ID: id}
}

func (e ErrEntityNotFound) Error() string {
	return "entity not found: " + e.Prefix + e.ID
}

// ErrEmptyEventLog is returned when rolling back an entity with no events.
type ErrEmptyEventLog struct {
	ID string
}

func NewErrEmptyEventLog(id string) ErrEmptyEventLog {
	return ErrEmptyEventLog{ID: id}
}

func (e ErrEmptyEventLog) Error() string {
	return "no events to roll back for entity: " + e.ID
}
