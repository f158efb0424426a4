package domain

// SkipReason explains why an approval draft did not produce a slot transition.
type SkipReason string

const (
	SkipMalformed       SkipReason = "malformed"
	SkipAdvisorNotFound SkipReason = "advisor_not_found"
	SkipProjectNotFound SkipReason = "project_not_found"
	SkipAmbiguous       SkipReason = "ambiguous"
	SkipDuplicate       SkipReason = "duplicate"
	SkipSlotUnavailable SkipReason = "slot_unavailable"
	SkipConflict        SkipReason = "conflict"
)

// ReconcileReport is the user-visible outcome of one reconciliation run.
type ReconcileReport struct {
	Drafts      int
	Planned     int
	Applied     int
	Skipped     map[SkipReason]int
	Transitions []SlotTransition
}

// NewReconcileReport returns an empty report for n drafts.
func NewReconcileReport(n int) ReconcileReport {
	return ReconcileReport{Drafts: n, Skipped: map[SkipReason]int{}}
}

// Skip counts one skipped draft.
func (r *ReconcileReport) Skip(reason SkipReason) {
	if r.Skipped == nil {
		r.Skipped = map[SkipReason]int{}
	}
	r.Skipped[reason]++
}

// SkippedTotal sums skips across reasons.
func (r ReconcileReport) SkippedTotal() int {
	total := 0
	for _, n := range r.Skipped {
		total += n
	}
	return total
}
