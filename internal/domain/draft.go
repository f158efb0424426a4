package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ProfileCode is a profile number as extracted: documents carry it either as a number or as text.
type ProfileCode string

// UnmarshalJSON accepts strings, integers and null.
func (p *ProfileCode) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		*p = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = ProfileCode(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if i, err := n.Int64(); err == nil {
		*p = ProfileCode(strconv.FormatInt(i, 10))
		return nil
	}
	*p = ProfileCode(n.String())
	return nil
}

// ApprovalDraft is one noisy row of a result document. It is never stored as-is.
type ApprovalDraft struct {
	Advisor      string      `json:"advisor"`
	ProjectTitle string      `json:"project_title"`
	Profile      ProfileCode `json:"profile_number"`
	Candidate    string      `json:"candidate_name"`
}

// SlotDraft is the funding detail of a project parsed from an inscription document.
type SlotDraft struct {
	Type        string      `json:"type"`
	Seats       int         `json:"seats"`
	Profile     ProfileCode `json:"profile_number"`
	Requirement string      `json:"requirement"`
	Stipend     float64     `json:"stipend"`
}

// ProjectDraft is a project parsed from an inscription document.
type ProjectDraft struct {
	Title   string      `json:"project_title"`
	Advisor string      `json:"advisor"`
	OrgUnit string      `json:"org_unit"`
	Summary string      `json:"summary,omitempty"`
	Slots   []SlotDraft `json:"slots"`
}

// AnnouncementDraft is a freshly parsed announcement ready to be merged with what is stored.
type AnnouncementDraft struct {
	Announcement Announcement
	Projects     []ProjectDraft
}

// SlotDefinition is a slot description written during a merge; Seats rows are materialized.
type SlotDefinition struct {
	Type        string
	Seats       int
	Profile     string
	Requirement string
	Stipend     float64
}

// ProjectPayload is a project whose identity was already resolved by the merge step.
type ProjectPayload struct {
	Project Project
	Slots   []SlotDefinition
}

// AnnouncementPayload is the fully resolved unit written atomically by the store.
type AnnouncementPayload struct {
	Announcement Announcement
	Projects     []ProjectPayload
}

// MergeResult reports the outcome of an upsert merge.
type MergeResult struct {
	AnnouncementID  string
	IsNew           bool
	MatchedProjects int
	CreatedProjects int
}
