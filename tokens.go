// tokens.go - Supported token pools.

package shieldpool

import "strings"

// Token describes one supported pool asset.
type Token struct {
	Name     string
	Mint     string
	Decimals int
}

// UnitsPerToken returns the base-unit scale (10^decimals).
func (t Token) UnitsPerToken() uint64 {
	units := uint64(1)
	for i := 0; i < t.Decimals; i++ {
		units *= 10
	}
	return units
}

// USDCMint is the USDC token mint.
const USDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

var supportedTokens = []Token{
	{Name: "USDC", Mint: USDCMint, Decimals: 6},
}

// FindToken resolves a token by name, case-insensitively.
func FindToken(name string) (Token, error) {
	for _, t := range supportedTokens {
		if strings.EqualFold(t.Name, name) {
			return t, nil
		}
	}
	return Token{}, &TokenNotSupportedError{Mint: name}
}

// FindTokenByMint resolves a token by its mint address.
func FindTokenByMint(mint string) (Token, error) {
	for _, t := range supportedTokens {
		if t.Mint == mint {
			return t, nil
		}
	}
	return Token{}, &TokenNotSupportedError{Mint: mint}
}
