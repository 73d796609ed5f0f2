// withdraw.go - Unshielding funds to a public recipient.

package transact

import (
	"context"

	"shieldpool/internal/ledger"
	"shieldpool/internal/shield"
)

// Withdraw unshields amount base units of the native asset to the
// recipient. The fee is taken out of the requested amount: the pool
// loses exactly amount, the recipient receives amount−fee.
func (b *Builder) Withdraw(ctx context.Context, amount, fee uint64, recipient ledger.Address) (*Result, error) {
	if fee > amount {
		return nil, &shield.InsufficientBalanceError{Need: fee, Have: amount}
	}
	nativeMint, err := ledger.ParseAddress(shield.NativeAsset)
	if err != nil {
		return nil, err
	}
	return b.transact(ctx, txParams{
		assetID:   shield.NativeAsset,
		mint:      nativeMint,
		extAmount: -int64(amount - fee),
		fee:       fee,
		recipient: recipient,
	})
}

// WithdrawToken unshields amount base units of a token pool to the
// recipient's associated token account.
func (b *Builder) WithdrawToken(ctx context.Context, token string, mint ledger.Address,
	amount, fee uint64, recipient ledger.Address) (*Result, error) {
	if fee > amount {
		return nil, &shield.InsufficientBalanceError{Need: fee, Have: amount}
	}
	recipientAccount := ledger.AssociatedTokenAddress(b.program, recipient, mint)
	return b.transact(ctx, txParams{
		token:     token,
		mint:      mint,
		assetID:   mint.String(),
		extAmount: -int64(amount - fee),
		fee:       fee,
		recipient: recipientAccount,
	})
}
