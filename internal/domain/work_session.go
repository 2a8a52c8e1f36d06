package domain

// WorkSession is one logged unit of trail work.
// OwnerID is set at creation and never changes.
type WorkSession struct {
	Entity
	OwnerID      string     `json:"owner_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	TimeMinutes  int        `json:"time_minutes"`
	NumberPeople int        `json:"number_people"`
	Link         string     `json:"link"`
	OccurredAt   *NaiveTime `json:"-"`
	Tags         []*Tag     `json:"tags"`
}

// IsOwnedBy reports whether userID owns the session.
func (w *WorkSession) IsOwnedBy(userID string) bool {
	return w.OwnerID == userID
}

// TagIDs returns the IDs of the attached tags.
func (w *WorkSession) TagIDs() []string {
	ids := make([]string, len(w.Tags))
	for i, t := range w.Tags {
		ids[i] = t.ID
	}
	return ids
}

// WorkSessionUpdate is a parsed partial update. A nil field is absent and
// leaves the stored value untouched. Tags set to an empty slice clears every
// attachment. The owner cannot be changed through an update.
type WorkSessionUpdate struct {
	Title        *string
	Description  *string
	TimeMinutes  *int
	NumberPeople *int
	Link         *string
	OccurredAt   *NaiveTime
	Tags         *[]TagRef
}

// Apply copies the present scalar fields onto w and reports whether any changed.
// Tags are resolved separately by the service.
func (u *WorkSessionUpdate) Apply(w *WorkSession) bool {
	changed := false
	if u.Title != nil && *u.Title != w.Title {
		w.Title = *u.Title
		changed = true
	}
	if u.Description != nil && *u.Description != w.Description {
		w.Description = *u.Description
		changed = true
	}
	if u.TimeMinutes != nil && *u.TimeMinutes != w.TimeMinutes {
		w.TimeMinutes = *u.TimeMinutes
		changed = true
	}
	if u.NumberPeople != nil && *u.NumberPeople != w.NumberPeople {
		w.NumberPeople = *u.NumberPeople
		changed = true
	}
	if u.Link != nil && *u.Link != w.Link {
		w.Link = *u.Link
		changed = true
	}
	if u.OccurredAt != nil && (w.OccurredAt == nil || !w.OccurredAt.Equal(*u.OccurredAt)) {
		at := *u.OccurredAt
		w.OccurredAt = &at
		changed = true
	}
	return changed
}
