package matching

// Thresholds groups the cutoffs of every matching layer.
type Thresholds struct {
	AdvisorLimit        int     `yaml:"advisorLimit"`
	AdvisorCutoff       float64 `yaml:"advisorCutoff"`
	JaccardCutoff       float64 `yaml:"jaccardCutoff"`
	ResultProjectCutoff float64 `yaml:"resultProjectCutoff"`
	MergeProjectCutoff  float64 `yaml:"mergeProjectCutoff"`
	CandidateCutoff     float64 `yaml:"candidateCutoff"`
}

// DefaultThresholds are the cutoffs the matchers were tuned with. Result-document
// and announcement-merge project matching keep distinct approximate cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		AdvisorLimit:        5,
		AdvisorCutoff:       0.75,
		JaccardCutoff:       0.6,
		ResultProjectCutoff: 0.8,
		MergeProjectCutoff:  0.85,
		CandidateCutoff:     0.95,
	}
}

// WithDefaults fills zero fields from DefaultThresholds.
func (t Thresholds) WithDefaults() Thresholds {
	d := DefaultThresholds()
	if t.AdvisorLimit <= 0 {
		t.AdvisorLimit = d.AdvisorLimit
	}
	if t.AdvisorCutoff <= 0 {
		t.AdvisorCutoff = d.AdvisorCutoff
	}
	if t.JaccardCutoff <= 0 {
		t.JaccardCutoff = d.JaccardCutoff
	}
	if t.ResultProjectCutoff <= 0 {
		t.ResultProjectCutoff = d.ResultProjectCutoff
	}
	if t.MergeProjectCutoff <= 0 {
		t.MergeProjectCutoff = d.MergeProjectCutoff
	}
	if t.CandidateCutoff <= 0 {
		t.CandidateCutoff = d.CandidateCutoff
	}
	return t
}
