package fairness

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sync"

	"faircore-backend/internal/apperr"
	"faircore-backend/internal/models"
)

var clientSeedPattern = regexp.MustCompile(`^[a-zA-Z0-9]{8,64}$`)

// Engine holds one live server secret at a time. Only the sha256 commitment
// of the secret is visible before play; Reveal discloses the secret and
// rotates in a fresh one so every committed secret can be verified post-hoc.
type Engine struct {
	mu         sync.Mutex
	secret     string
	commitment string
}

func NewEngine() *Engine {
	e := &Engine{}
	e.rotate()
	return e
}

func generateSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(buf)
}

func commitmentOf(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func (e *Engine) rotate() {
	e.secret = generateSecret()
	e.commitment = commitmentOf(e.secret)
}

func (e *Engine) Commitment() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.commitment
}

// Reveal returns the secret just used and swaps in a freshly generated one.
// sha256(revealed) equals the commitment published before play.
func (e *Engine) Reveal() (revealed, nextCommitment string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	revealed = e.secret
	e.rotate()
	return revealed, e.commitment
}

// Seed combines the live server secret with a player-supplied seed and nonce.
// The same triple always produces the same game hash.
func (e *Engine) Seed(clientSeed string, nonce int64) (*GameSeed, error) {
	if !clientSeedPattern.MatchString(clientSeed) {
		return nil, apperr.Validation("InvalidSeed",
			"client seed must be 8-64 alphanumeric characters")
	}
	e.mu.Lock()
	secret, commitment := e.secret, e.commitment
	e.mu.Unlock()
	return newGameSeed(secret, commitment, clientSeed, nonce), nil
}

// Derive recomputes a game seed from a revealed server secret so players can
// replay the formula and compare against the published result.
func Derive(serverSecret, clientSeed string, nonce int64) (*GameSeed, error) {
	if !clientSeedPattern.MatchString(clientSeed) {
		return nil, apperr.Validation("InvalidSeed",
			"client seed must be 8-64 alphanumeric characters")
	}
	return newGameSeed(serverSecret, commitmentOf(serverSecret), clientSeed, nonce), nil
}

// GameSeed is the deterministic randomness source for a single play.
type GameSeed struct {
	commitment string
	clientSeed string
	nonce      int64
	digest     [32]byte
	hash       string
}

func newGameSeed(secret, commitment, clientSeed string, nonce int64) *GameSeed {
	combined := fmt.Sprintf("%s:%s:%d", secret, clientSeed, nonce)
	digest := sha256.Sum256([]byte(combined))
	return &GameSeed{
		commitment: commitment,
		clientSeed: clientSeed,
		nonce:      nonce,
		digest:     digest,
		hash:       hex.EncodeToString(digest[:]),
	}
}

func (s *GameSeed) Hash() string { return s.hash }

func (s *GameSeed) Proof() models.Proof {
	return models.Proof{
		ServerSeedHashCommitment: s.commitment,
		ClientSeed:               s.clientSeed,
		Nonce:                    s.nonce,
		GameHash:                 s.hash,
	}
}

// Float converts the first 8 digest bytes to a value in [0,1) by summing
// byte[i] * 256^-(i+1).
func (s *GameSeed) Float() float64 {
	return bytesToFloat(s.digest[:8])
}

// FloatAt extends the seed to a stream of independent draws by re-hashing the
// game hash with the draw index.
func (s *GameSeed) FloatAt(i int) float64 {
	if i == 0 {
		return s.Float()
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", s.hash, i)))
	return bytesToFloat(sum[:8])
}

func bytesToFloat(b []byte) float64 {
	out := 0.0
	div := 1.0
	for _, v := range b {
		div *= 256
		out += float64(v) / div
	}
	return out
}
