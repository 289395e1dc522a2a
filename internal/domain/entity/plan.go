package entity

// PlanRecord is one parsed model turn.
type PlanRecord struct {
	Observation string   `json:"observation"`
	Plan        string   `json:"plan"`
	Actions     []string `json:"actions"`
	Done        bool     `json:"done"`
}

// PlanError reports a model reply that could not be turned into a PlanRecord.
type PlanError struct {
	Message string
}

func (e *PlanError) Error() string {
	return e.Message
}
