// Package search provides full-text search over work sessions using Bleve.
// Every query is filtered by owner so a user only ever finds their own sessions.
package search

import (
	"github.com/traildig/traildig-server/internal/domain"
)

// Document is the indexed form of a work session.
//
// Tag names are denormalized into the document so a query for "drainage"
// finds sessions tagged Drainage even when the title never mentions it.
type Document struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`

	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	TimeMinutes  int `json:"time_minutes"`
	NumberPeople int `json:"number_people"`

	CreatedAt int64 `json:"created_at"` // Unix millis
	UpdatedAt int64 `json:"updated_at"` // Unix millis
}

// ToMap converts the document to a map keyed by the mapping's field names.
func (d *Document) ToMap() map[string]any {
	m := map[string]any{
		"id":            d.ID,
		"owner_id":      d.OwnerID,
		"title":         d.Title,
		"time_minutes":  d.TimeMinutes,
		"number_people": d.NumberPeople,
		"created_at":    d.CreatedAt,
		"updated_at":    d.UpdatedAt,
	}
	if d.Description != "" {
		m["description"] = d.Description
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}
	return m
}

// FromWorkSession builds the index document for a work session.
func FromWorkSession(ws *domain.WorkSession) *Document {
	tags := make([]string, 0, len(ws.Tags))
	for _, t := range ws.Tags {
		tags = append(tags, t.Name)
	}

	return &Document{
		ID:           ws.ID,
		OwnerID:      ws.OwnerID,
		Title:        ws.Title,
		Description:  ws.Description,
		Tags:         tags,
		TimeMinutes:  ws.TimeMinutes,
		NumberPeople: ws.NumberPeople,
		CreatedAt:    ws.CreatedAt.UnixMilli(),
		UpdatedAt:    ws.UpdatedAt.UnixMilli(),
	}
}
