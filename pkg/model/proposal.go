package model

// AssignmentProposal is the transient output of a router pass: an
// (agent, item) pairing with its derived branch name. It exists only
// between the Router's decision and the State Machine's commit — it is
// never persisted.
type AssignmentProposal struct {
	AgentID    string
	ItemKey    int
	BranchName string
}

// NewAssignmentProposal derives the branch name from the item's title and
// builds the proposal.
func NewAssignmentProposal(agentID string, item *WorkItem) AssignmentProposal {
	return AssignmentProposal{
		AgentID:    agentID,
		ItemKey:    item.Key,
		BranchName: BranchName(agentID, item.Key, item.Title),
	}
}
