package models

import (
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/google/uuid"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

func ValidAddress(addr string) bool {
	return addressPattern.MatchString(addr)
}

func GenerateSessionID() string {
	return fmt.Sprintf("sess_%s_%d",
		time.Now().Format("20060102"),
		uuid.New().ID())
}

func GenerateSupportRef() string {
	return "ref_" + uuid.NewString()
}

// RoundMoney rounds to 4 decimal digits so float drift never reaches the
// ledger.
func RoundMoney(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func (r *PayoutRequest) Validate() error {
	if !ValidAddress(r.PlayerAddress) {
		return fmt.Errorf("invalid player address: %q", r.PlayerAddress)
	}
	if r.TransactionID == "" {
		return fmt.Errorf("transaction_id is required")
	}
	if r.Priority == "" {
		r.Priority = PriorityNormal
	}
	if !r.Priority.Valid() {
		return fmt.Errorf("invalid priority: %q", r.Priority)
	}
	if r.GameProof != nil && !r.GameProof.Complete() {
		return fmt.Errorf("game proof is incomplete")
	}
	return nil
}
