package models

import "time"

type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalApproved ProposalStatus = "approved"
	ProposalExecuted ProposalStatus = "executed"
	ProposalRejected ProposalStatus = "rejected"
	ProposalExpired  ProposalStatus = "expired"
)

// Proposal is a multi-signature approval record for an operation exceeding
// the direct-payout threshold. Execution may only proceed once Approved and
// past ExecutionNotBefore.
type Proposal struct {
	ID                 string         `json:"id"`
	Operation          string         `json:"operation"`
	Target             string         `json:"target"`
	Amount             float64        `json:"amount"`
	RequiredSignatures int            `json:"required_signatures"`
	Signatures         []string       `json:"signatures"`
	Status             ProposalStatus `json:"status"`
	CreatedAt          time.Time      `json:"created_at"`
	ExecutionNotBefore time.Time      `json:"execution_not_before"`
	ExpiresAt          time.Time      `json:"expires_at"`
}

func (p *Proposal) SignedBy(addr string) bool {
	for _, s := range p.Signatures {
		if s == addr {
			return true
		}
	}
	return false
}
