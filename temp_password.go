package auth

import (
	"crypto/rand"
	"math/big"

	goerrors "github.com/goliatone/go-errors"
)

const (
	tempPasswordAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	// DefaultTempPasswordLength gives roughly 82 bits of entropy.
	DefaultTempPasswordLength = 16
)

// GenerateTempPassword returns a random base-36 string of length n.
func GenerateTempPassword(n int) (string, error) {
	if n <= 0 {
		n = DefaultTempPasswordLength
	}

	max := big.NewInt(int64(len(tempPasswordAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate temporary password")
		}
		out[i] = tempPasswordAlphabet[idx.Int64()]
	}
	return string(out), nil
}
