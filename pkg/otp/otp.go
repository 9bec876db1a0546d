// Package otp produces the numeric one-time codes mailed during email verification.
package otp

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

const (
	// Min and Max bound every generated code, both inclusive.
	Min = 100000
	Max = 999999
)

var span = big.NewInt(Max - Min + 1)

// Generator draws codes from an entropy source
type Generator struct {
	entropy io.Reader
}

// NewGenerator returns a generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorFromReader returns a generator reading from r. Tests only; r must be
// indistinguishable from random in production.
func NewGeneratorFromReader(r io.Reader) *Generator {
	return &Generator{entropy: r}
}

// Generate returns a uniformly distributed 6-digit code
func (g *Generator) Generate() (int, error) {
	n, err := rand.Int(g.entropy, span)
	if err != nil {
		return 0, fmt.Errorf("failed to read entropy: %w", err)
	}
	return int(n.Int64()) + Min, nil
}

// Generate returns a code from the default generator
func Generate() (int, error) {
	return NewGenerator().Generate()
}
