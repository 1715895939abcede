package models

import "github.com/google/uuid"

// assignID gives a row a client-side UUID so inserts behave the same on every dialect.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// OrgRef converts an optional organization id into the nullable column value.
func OrgRef(orgID string) *string {
	if orgID == "" {
		return nil
	}
	return &orgID
}
