// Copyright (c) 2026 Sasayaki. All rights reserved.
// Author: k.hayashi.dev@gmail.com

// Package schema centralizes table and column names so query builders in
// the storage layer never hardcode identifiers.
package schema

// UsersTable represents the 'users' table
type UsersTable struct {
	Table            string
	ID               string
	Name             string
	Email            string
	PasswordDigest   string
	RememberDigest   string
	ActivationDigest string
	Activated        string
	ActivatedAt      string
	ResetDigest      string
	ResetSentAt      string
	CreatedAt        string
	UpdatedAt        string
}

// Users is the schema definition for the users table
var Users = UsersTable{
	Table:            "users",
	ID:               "id",
	Name:             "name",
	Email:            "email",
	PasswordDigest:   "password_digest",
	RememberDigest:   "remember_digest",
	ActivationDigest: "activation_digest",
	Activated:        "activated",
	ActivatedAt:      "activated_at",
	ResetDigest:      "reset_digest",
	ResetSentAt:      "reset_sent_at",
	CreatedAt:        "created_at",
	UpdatedAt:        "updated_at",
}

// Columns returns all column names in select order
func (t UsersTable) Columns() []string {
	return []string{
		t.ID, t.Name, t.Email, t.PasswordDigest, t.RememberDigest,
		t.ActivationDigest, t.Activated, t.ActivatedAt,
		t.ResetDigest, t.ResetSentAt, t.CreatedAt, t.UpdatedAt,
	}
}
