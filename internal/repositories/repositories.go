package repositories

import (
	"fmt"
	"time"

	"github.com/desertthunder/spotremote/internal/models"
)

// SessionStore is the storage contract used by the HTTP session layer.
type SessionStore interface {
	models.Repository[*models.Session]

	// PurgeExpired deletes sessions last updated before the cutoff and returns how many were removed.
	PurgeExpired(before time.Time) (int, error)

	// Touch moves a session's last-activity time without rewriting its other fields.
	Touch(id string, at time.Time) error
}

// authenticatedCriterion reads the optional "authenticated" filter accepted by List.
func authenticatedCriterion(criteria map[string]any) (value bool, set bool, err error) {
	for key, raw := range criteria {
		if key != "authenticated" {
			return false, false, fmt.Errorf("unsupported criterion %q", key)
		}
		b, ok := raw.(bool)
		if !ok {
			return false, false, fmt.Errorf("criterion %q must be a bool", key)
		}
		value, set = b, true
	}
	return value, set, nil
}
