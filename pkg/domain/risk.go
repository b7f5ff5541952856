package domain

// RiskAssessment is the derived verdict over a principal's recent login
// events. It is recomputed on demand and never stored as primary state,
// though callers may persist a snapshot as a suspicious_activity event.
type RiskAssessment struct {
	Score      int      `json:"score"`
	Suspicious bool     `json:"suspicious"`
	Reasons    []string `json:"reasons"`
}
