package identity

import "time"

// EnrollmentRecord is the single persisted entity of the engine: the
// canonical vector for one enrolled person plus display metadata.
// Exactly one record exists per user ID; re-enrollment replaces the record
// wholesale, it is never merged.
//
// The JSON tags match the on-disk encodings document used by the file store.
type EnrollmentRecord struct {
	UserID       string    `json:"user_id"`
	Vector       Vector    `json:"encoding"`
	DisplayName  string    `json:"name"`
	ContactEmail string    `json:"email"`
	UpdatedAt    time.Time `json:"timestamp"`
}

// NewEnrollmentRecord builds a record stamped with the current time.
func NewEnrollmentRecord(userID string, vec Vector, name, email string) EnrollmentRecord {
	return EnrollmentRecord{
		UserID:       userID,
		Vector:       vec,
		DisplayName:  name,
		ContactEmail: email,
		UpdatedAt:    time.Now().UTC(),
	}
}
