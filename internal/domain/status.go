package domain

import "fmt"

// Status enumerates lifecycle states for demandas. Values are the pt-BR labels
// shown to users and persisted as-is.
type Status string

const (
	StatusOpen       Status = "Em aberto"
	StatusConfirmed  Status = "Confirmado"
	StatusInApproval Status = "Em aprovação"
	StatusDone       Status = "Finalizado"
)

var statuses = []Status{StatusOpen, StatusConfirmed, StatusInApproval, StatusDone}

// Statuses returns the allowed states in display order.
func Statuses() []Status {
	return append([]Status(nil), statuses...)
}

// Valid reports whether s is one of the enumerated states.
func (s Status) Valid() bool {
	for _, candidate := range statuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// ParseStatus checks membership only; any state may follow any other.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q (use one of %v)", ErrInvalidStatus, raw, statuses)
	}
	return s, nil
}
