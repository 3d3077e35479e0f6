package api

// InvestigateRequest is the body of POST /investigate.
type InvestigateRequest struct {
	Goal            string `json:"goal"`
	TargetNamespace string `json:"target_namespace,omitempty"`
	TurnBudget      int    `json:"turn_budget,omitempty"`
	RunbookURL      string `json:"runbook_url,omitempty"`
}
