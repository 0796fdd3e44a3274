package farm

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

// =============================================================================
// ID GENERATION
// =============================================================================

// IDSource generates entity ids and the random suffix of batch/order numbers.
type IDSource interface {
	NewID() string
	Suffix() string // 4 characters from [0-9A-Z]
}

const suffixAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

type randomIDs struct{}

func (randomIDs) NewID() string { return uuid.NewString() }

func (randomIDs) Suffix() string {
	b := make([]byte, 4)
	max := big.NewInt(int64(len(suffixAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(err)
		}
		b[i] = suffixAlphabet[n.Int64()]
	}
	return string(b)
}

func batchNo(day Day, suffix string) string { return "BATCH-" + day.Compact() + "-" + suffix }
func orderNo(day Day, suffix string) string { return "ORD-" + day.Compact() + "-" + suffix }

// maxNumberAttempts bounds retries when a generated number collides.
const maxNumberAttempts = 32

// uniqueNumber draws numbers until one is not taken.
func uniqueNumber(format func(Day, string) string, day Day, ids IDSource, taken func(string) bool) (string, error) {
	for i := 0; i < maxNumberAttempts; i++ {
		n := format(day, ids.Suffix())
		if !taken(n) {
			return n, nil
		}
	}
	return "", ErrNumberExhausted
}
