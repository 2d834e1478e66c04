package core

// FlowState is the value threaded through the purchase flow. Every node
// receives a complete FlowState and returns a complete FlowState. Because it
// is passed by value, fields a node does not set are carried over unchanged.
type FlowState struct {
	Input           string `json:"input"`
	IsHonorific     bool   `json:"is_honorific"`
	IntentPayAmount bool   `json:"intent_pay_amount"`
	ToolEligible    bool   `json:"tool_eligible"`
	Output          string `json:"output"`
}

// NewFlowState creates the initial state for an invocation: every flag false
// and no output.
func NewFlowState(input string) FlowState {
	return FlowState{Input: input}
}
