package security

import "context"

type Status string

const (
	StatusNormal   Status = "normal"
	StatusElevated Status = "elevated"
	StatusCritical Status = "critical"
)

// Checker is the narrow contract to the external security-audit service. The
// payout path consults it before touching the ledger.
type Checker interface {
	RunQuickCheck(ctx context.Context) (Status, error)
}

// StaticChecker reports a fixed status; the default collaborator for
// single-node runs and tests.
type StaticChecker struct {
	Status Status
}

func (c *StaticChecker) RunQuickCheck(context.Context) (Status, error) {
	if c.Status == "" {
		return StatusNormal, nil
	}
	return c.Status, nil
}
