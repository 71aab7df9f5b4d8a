package model

import "time"

// ConnectedAccountSummary is what the UI knows about a linked account.
// Only ID is guaranteed; the rest is filled in by a best-effort lookup.
type ConnectedAccountSummary struct {
	ID          string
	DisplayName string
	AppName     string
	AppIconURL  string
}

// Account is a connected account as reported by the connect platform.
type Account struct {
	ID         string    `db:"id"`
	Name       string    `db:"name"`
	ExternalID string    `db:"external_id"`
	AppSlug    string    `db:"app_slug"`
	AppName    string    `db:"app_name"`
	AppIconURL string    `db:"app_icon_url"`
	Healthy    bool      `db:"healthy"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Summary reduces an account to the fields shown next to a tool call.
func (a Account) Summary() ConnectedAccountSummary {
	return ConnectedAccountSummary{
		ID:          a.ID,
		DisplayName: a.Name,
		AppName:     a.AppName,
		AppIconURL:  a.AppIconURL,
	}
}
