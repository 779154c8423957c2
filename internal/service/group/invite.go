package group

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
)

// DefaultMaxCodeAttempts bounds redraws before ErrCodesExhausted.
const DefaultMaxCodeAttempts = 20

// RandSource yields uniformly distributed ints in [0, n).
type RandSource interface {
	IntN(n int) int
}

// CryptoSource draws from crypto/rand. It is safe for concurrent use.
type CryptoSource struct{}

func (CryptoSource) IntN(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(fmt.Sprintf("crypto/rand: %v", err))
	}
	return int(v.Int64())
}

// CodeChecker is the pre-check against already issued codes.
type CodeChecker interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

// ClaimFunc persists a freshly drawn code. It returns an error wrapping
// domain.ErrConflict when the store's unique constraint rejects the code.
type ClaimFunc func(ctx context.Context, code string) error

// CodeGenerator issues 12-character invitation codes from [A-Z0-9].
type CodeGenerator struct {
	checker     CodeChecker
	rand        RandSource
	maxAttempts int
}

// NewCodeGenerator creates a generator. A nil src means CryptoSource and a
// non-positive maxAttempts means DefaultMaxCodeAttempts. checker may be nil
// when the claim alone decides uniqueness.
func NewCodeGenerator(checker CodeChecker, src RandSource, maxAttempts int) *CodeGenerator {
	if src == nil {
		src = CryptoSource{}
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxCodeAttempts
	}
	return &CodeGenerator{checker: checker, rand: src, maxAttempts: maxAttempts}
}

// Draw returns one random code without any uniqueness check.
func (g *CodeGenerator) Draw() string {
	var b strings.Builder
	b.Grow(domain.InvitationCodeLength)
	for i := 0; i < domain.InvitationCodeLength; i++ {
		b.WriteByte(domain.InvitationAlphabet[g.rand.IntN(len(domain.InvitationAlphabet))])
	}
	return b.String()
}

// Generate returns a code not yet present in the store. Only safe for
// concurrent use together with a unique constraint; prefer GenerateWith.
func (g *CodeGenerator) Generate(ctx context.Context) (string, error) {
	return g.GenerateWith(ctx, nil)
}

// GenerateWith draws codes until one passes the pre-check and claim. A
// collision at either step costs one attempt.
func (g *CodeGenerator) GenerateWith(ctx context.Context, claim ClaimFunc) (string, error) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code := g.Draw()

		if g.checker != nil {
			taken, err := g.checker.CodeExists(ctx, code)
			if err != nil {
				return "", fmt.Errorf("check invitation code: %w", err)
			}
			if taken {
				continue
			}
		}
		if claim == nil {
			return code, nil
		}
		err := claim(ctx, code)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return "", fmt.Errorf("claim invitation code: %w", err)
		}
	}
	return "", fmt.Errorf("after %d attempts: %w", g.maxAttempts, ErrCodesExhausted)
}

// ValidCode reports whether s has the shape of an invitation code.
func ValidCode(s string) bool {
	if len(s) != domain.InvitationCodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(domain.InvitationAlphabet, rune(s[i])) {
			return false
		}
	}
	return true
}
