// deposit.go - Shielding funds into the pool.

package transact

import (
	"context"

	"shieldpool/internal/ledger"
	"shieldpool/internal/shield"
)

// splDepositMinLamports is the native balance a wallet must hold before
// a token deposit: transaction costs are always paid in the native asset.
const splDepositMinLamports = 2_000_000

// Deposit shields amount base units of the native asset. The recipient
// of a deposit is the pool's tree-token account; the optional referrer
// is forwarded to the relayer.
func (b *Builder) Deposit(ctx context.Context, amount uint64, fee uint64, referrer string) (*Result, error) {
	if err := b.checkNativeFunds(ctx, amount+fee); err != nil {
		return nil, err
	}
	nativeMint, err := ledger.ParseAddress(shield.NativeAsset)
	if err != nil {
		return nil, err
	}
	_, treeToken, _ := ledger.ProgramAccounts(b.program)
	return b.transact(ctx, txParams{
		assetID:   shield.NativeAsset,
		mint:      nativeMint,
		extAmount: int64(amount),
		fee:       fee,
		recipient: treeToken,
		referrer:  referrer,
	})
}

// DepositToken shields amount base units of a token pool.
func (b *Builder) DepositToken(ctx context.Context, token string, mint ledger.Address,
	amount uint64, fee uint64, referrer string) (*Result, error) {
	if err := b.checkNativeFunds(ctx, splDepositMinLamports); err != nil {
		return nil, err
	}
	if err := b.checkTokenFunds(ctx, token, mint, amount+fee); err != nil {
		return nil, err
	}
	treeToken := ledger.TokenTreeAccount(b.program, mint)
	return b.transact(ctx, txParams{
		token:     token,
		mint:      mint,
		assetID:   mint.String(),
		extAmount: int64(amount),
		fee:       fee,
		recipient: treeToken,
		referrer:  referrer,
	})
}

func (b *Builder) checkNativeFunds(ctx context.Context, need uint64) error {
	have, err := b.rpc.Balance(ctx, b.wallet.Address())
	if err != nil {
		return err
	}
	if have < need {
		return &shield.InsufficientBalanceError{Need: need, Have: have}
	}
	return nil
}

func (b *Builder) checkTokenFunds(ctx context.Context, token string, mint ledger.Address, need uint64) error {
	account := ledger.AssociatedTokenAddress(b.program, b.wallet.Address(), mint)
	have, err := b.rpc.TokenAccountBalance(ctx, account)
	if err != nil {
		return err
	}
	if have < need {
		return &shield.InsufficientTokenBalanceError{Token: token, Need: need, Have: have}
	}
	return nil
}
