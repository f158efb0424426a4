package domain

// Project is a unit of work under one advisor; slots belong to it.
type Project struct {
	ID             string `db:"id"`
	AnnouncementID string `db:"announcement_id"`
	Name           string `db:"name"`
	Advisor        string `db:"advisor"`
	OrgUnit        string `db:"org_unit"`
	Summary        string `db:"summary"`
}

// SlotStatus is the fill state of a scholarship slot.
type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotFilled    SlotStatus = "filled"
)

// Slot is one scholarship opening of a project.
type Slot struct {
	ID          string     `db:"id"`
	ProjectID   string     `db:"project_id"`
	Type        string     `db:"type"`
	Profile     string     `db:"profile"`
	Status      SlotStatus `db:"status"`
	Candidate   string     `db:"candidate"`
	Requirement string     `db:"requirement"`
	Stipend     float64    `db:"stipend"`
}

// FilledCandidate is a candidate name already recorded on a filled slot.
type FilledCandidate struct {
	ProjectID string `db:"project_id"`
	Candidate string `db:"candidate"`
}

// SlotTransition moves one available slot to filled by the given candidate.
type SlotTransition struct {
	SlotID    string
	Candidate string
}
