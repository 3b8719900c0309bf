package digiflazz

import "strings"

// OutcomePolicy decides whether a provider-reported status is a business
// failure that requires compensation. The provider guarantees only the
// explicit failure strings; everything else is success-or-pending and must
// not be compensated automatically.
type OutcomePolicy interface {
	IsFailure(status string) bool
}

// DefaultOutcomePolicy matches the provider's two documented failure strings,
// case-insensitively.
type DefaultOutcomePolicy struct{}

func (DefaultOutcomePolicy) IsFailure(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "failed", "gagal":
		return true
	}
	return false
}
