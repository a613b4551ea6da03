// Package models contains domain models for recall.
package models

// InteractionRecord is one logged exchange from llm's responses table.
// The log store is owned by the host tool; recall only ever reads it.
type InteractionRecord struct {
	ID          string `db:"id" json:"id"`
	Prompt      string `db:"prompt" json:"prompt"`
	Model       string `db:"model" json:"model"`
	DatetimeUTC string `db:"datetime_utc" json:"datetime_utc"`
}
