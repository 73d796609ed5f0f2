// config.go - Read-through fee configuration.

package shieldpool

import (
	"context"
	"math"
	"sync"

	"shieldpool/internal/relayer"
)

// lamportsPerSol converts the relayer's SOL-denominated rent fees.
const lamportsPerSol = 1_000_000_000

// FeeService caches the relayer's fee schedule. The cache is explicit:
// it fills on first use and holds until Invalidate.
type FeeService struct {
	relay *relayer.Client

	mu     sync.Mutex
	cached *relayer.FeeConfig
}

// NewFeeService wraps a relayer client.
func NewFeeService(relay *relayer.Client) *FeeService {
	return &FeeService{relay: relay}
}

// Invalidate drops the cached schedule; the next query refetches.
func (s *FeeService) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

func (s *FeeService) config(ctx context.Context) (*relayer.FeeConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil {
		return s.cached, nil
	}
	cfg, err := s.relay.Config(ctx)
	if err != nil {
		return nil, err
	}
	s.cached = cfg
	return cfg, nil
}

// DepositFee returns the protocol fee for depositing amount base units.
func (s *FeeService) DepositFee(ctx context.Context, amount uint64) (uint64, error) {
	cfg, err := s.config(ctx)
	if err != nil {
		return 0, err
	}
	return rateFee(amount, cfg.DepositFeeRate), nil
}

// WithdrawFee returns the total fee for withdrawing amount base units:
// the proportional rate plus the recipient-account rent charge. A nil
// token means the native asset.
func (s *FeeService) WithdrawFee(ctx context.Context, amount uint64, token *Token) (uint64, error) {
	cfg, err := s.config(ctx)
	if err != nil {
		return 0, err
	}
	fee := rateFee(amount, cfg.WithdrawFeeRate)
	if token == nil {
		return fee + uint64(math.Round(cfg.WithdrawRentFee*lamportsPerSol)), nil
	}
	rent, ok := cfg.RentFees[token.Name]
	if !ok && token.Name == "USDC" {
		rent = cfg.USDCWithdrawRentFee
	}
	return fee + uint64(math.Round(rent*float64(token.UnitsPerToken()))), nil
}

func rateFee(amount uint64, rate float64) uint64 {
	if rate <= 0 {
		return 0
	}
	return uint64(math.Round(float64(amount) * rate))
}
