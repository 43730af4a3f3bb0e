package types

// Score bounds for an analysis.
const (
	MinScore = 0
	MaxScore = 100
)

// Analysis is the model's assessment of a résumé for a target role.
type Analysis struct {
	Score          int      `json:"score"`
	Feedback       []string `json:"feedback"`
	RawTextPreview string   `json:"raw_text_preview"`
	ResultID       string   `json:"result_id,omitempty"`
}

// ClampScore forces Score into [MinScore, MaxScore].
func (a *Analysis) ClampScore() {
	switch {
	case a.Score < MinScore:
		a.Score = MinScore
	case a.Score > MaxScore:
		a.Score = MaxScore
	}
}

// Clone returns a deep copy so stores never alias caller memory.
func (a *Analysis) Clone() *Analysis {
	if a == nil {
		return nil
	}
	cp := *a
	if a.Feedback != nil {
		cp.Feedback = append([]string(nil), a.Feedback...)
	}
	return &cp
}
