package domain

// Tag is a label owned by one user. Names are unique per owner, so two users
// may each have a tag with the same name.
type Tag struct {
	Entity
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
	// AmountWorkDoneMinutes is the sum of time_minutes over the sessions
	// carrying this tag. Zero when none do.
	AmountWorkDoneMinutes int `json:"amount_work_done_minutes"`
}

// TagRef names a tag in a work session payload.
type TagRef struct {
	Name string `json:"name" validate:"required,max=255" doc:"Tag name, scoped to the acting user"`
}

// TagNames returns the names of refs in order, dropping repeats.
func TagNames(refs []TagRef) []string {
	names := make([]string, 0, len(refs))
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		if _, ok := seen[ref.Name]; ok {
			continue
		}
		seen[ref.Name] = struct{}{}
		names = append(names, ref.Name)
	}
	return names
}
