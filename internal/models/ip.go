package models

import "time"

// IPPolicyEntry is one allow/deny row per distinct address. A missing row
// means "allowed"; the static deny list is configuration, not a row.
type IPPolicyEntry struct {
	ID           string    `db:"id" json:"id"`
	Address      string    `db:"address" json:"address"`
	Allowed      bool      `db:"allowed" json:"allowed"`
	DeviceLabel  string    `db:"device_label" json:"device_label"`
	OSLabel      string    `db:"os_label" json:"os_label"`
	BrowserLabel string    `db:"browser_label" json:"browser_label"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// UpsertIPPolicyRequest creates or overwrites the policy row for an address.
type UpsertIPPolicyRequest struct {
	Address      string `json:"address" validate:"required,ip"`
	Allowed      bool   `json:"allowed"`
	DeviceLabel  string `json:"device_label"`
	OSLabel      string `json:"os_label"`
	BrowserLabel string `json:"browser_label"`
}

// ActiveSession tracks whether a browser session currently occupies an IP
// address. Active=true with LastSeen inside the TTL means the slot is held.
type ActiveSession struct {
	Address         string    `db:"address" json:"address"`
	ClientSignature string    `db:"client_signature" json:"client_signature"`
	LastSeen        time.Time `db:"last_seen" json:"last_seen"`
	Active          bool      `db:"active" json:"active"`
}
