package record

import "strings"

// Roles stored on user documents.
const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
)

// DefaultClinic names doctors whose profile has no clinic or hospital.
const DefaultClinic = "General Clinic"

// User is the canonical view of a users-collection document.
type User struct {
	ID     string `json:"id"`
	Role   string `json:"role"`
	Clinic string `json:"clinic"`
}

// NormalizeUser reads a user document. An empty defaultClinic selects
// DefaultClinic.
func NormalizeUser(raw Raw, defaultClinic string) User {
	if defaultClinic == "" {
		defaultClinic = DefaultClinic
	}
	u := User{
		ID:     textAt(raw, "id", "uid", "_id"),
		Role:   strings.ToLower(strings.TrimSpace(textAt(raw, "role"))),
		Clinic: textAt(raw, "clinic", "hospital"),
	}
	if u.Clinic == "" {
		u.Clinic = defaultClinic
	}
	return u
}

// NormalizeUsers normalizes every user document in order.
func NormalizeUsers(raws []Raw, defaultClinic string) []User {
	out := make([]User, 0, len(raws))
	for _, raw := range raws {
		out = append(out, NormalizeUser(raw, defaultClinic))
	}
	return out
}
