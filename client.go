// client.go - The shielded pool client facade.
//
// One Client owns a wallet, its derived encryption keys, and the
// collaborators (ledger RPC, relayer, prover, cache) needed to scan,
// deposit and withdraw. Construction derives keys once; everything else
// is per-call.

package shieldpool

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"shieldpool/internal/ledger"
	"shieldpool/internal/prover"
	"shieldpool/internal/relayer"
	"shieldpool/internal/scan"
	"shieldpool/internal/shield"
	"shieldpool/internal/storage"
	"shieldpool/internal/transact"
)

// Balance is a native-asset balance in base units.
type Balance = shield.Balance

// TokenBalance is a token balance in base units plus a decimal reading.
type TokenBalance = shield.TokenBalance

// Result reports a submitted shielded transaction.
type Result = transact.Result

// Options configures a Client. RelayerURL, RPCURL, WalletSeed,
// ProgramID and FeeRecipient are required.
type Options struct {
	RelayerURL   string
	RPCURL       string
	WalletSeed   []byte
	ProgramID    string
	FeeRecipient string

	// StoragePath persists scan checkpoints on disk; empty keeps them
	// in memory for the session.
	StoragePath string
	// KeyDir caches proving artifacts; empty regenerates them per run.
	KeyDir string
	// ProverCommand switches proving to an external binary reading the
	// circuit input on stdin; empty proves in-process.
	ProverCommand string
	Logger        zerolog.Logger
}

// Client is the public entrypoint for one wallet's shielded funds.
type Client struct {
	wallet  *ledger.Wallet
	enc     *shield.EncryptionService
	rpc     ledger.RPC
	relay   *relayer.Client
	store   storage.Backend
	scanner *scan.Scanner
	builder *transact.Builder
	fees    *FeeService
	program ledger.Address
	log     zerolog.Logger
}

// New builds a client and derives its encryption keys from the wallet.
func New(opts Options) (*Client, error) {
	return newClient(opts, nil)
}

func newClient(opts Options, prove prover.Prover) (*Client, error) {
	wallet, err := ledger.WalletFromSeed(opts.WalletSeed)
	if err != nil {
		return nil, err
	}
	program, err := ledger.ParseAddress(opts.ProgramID)
	if err != nil {
		return nil, errors.Wrap(err, "program id")
	}
	feeRecipient, err := ledger.ParseAddress(opts.FeeRecipient)
	if err != nil {
		return nil, errors.Wrap(err, "fee recipient")
	}

	enc := shield.NewEncryptionService()
	if err := enc.DeriveKeys(wallet.SignMessage([]byte(shield.KeyDerivationMessage))); err != nil {
		return nil, err
	}

	var store storage.Backend
	if opts.StoragePath != "" {
		store, err = storage.OpenBolt(opts.StoragePath)
		if err != nil {
			return nil, err
		}
	} else {
		store = storage.NewMemory()
	}

	if prove == nil {
		if opts.ProverCommand != "" {
			prove = &prover.CommandProver{Path: opts.ProverCommand, ArtifactsDir: opts.KeyDir}
		} else {
			prove = prover.NewLocalProver(shield.DefaultTreeDepth, opts.KeyDir, opts.Logger)
		}
	}

	relay := relayer.New(opts.RelayerURL, opts.Logger)
	rpc := ledger.NewRPCClient(opts.RPCURL)
	scanner := scan.New(rpc, relay, enc, store, program, wallet.Address(), opts.Logger)
	builder := transact.NewBuilder(rpc, relay, enc, scanner, prove, wallet,
		program, feeRecipient, opts.Logger)

	return &Client{
		wallet:  wallet,
		enc:     enc,
		rpc:     rpc,
		relay:   relay,
		store:   store,
		scanner: scanner,
		builder: builder,
		fees:    NewFeeService(relay),
		program: program,
		log:     opts.Logger,
	}, nil
}

// Address returns the client's wallet address.
func (c *Client) Address() string {
	return c.wallet.Address().String()
}

// PrivateBalance scans and sums the wallet's unspent native UTXOs.
func (c *Client) PrivateBalance(ctx context.Context) (Balance, error) {
	utxos, err := c.scanner.Scan(ctx)
	if err != nil {
		return Balance{}, err
	}
	return shield.BalanceFromUtxos(utxos), nil
}

// PrivateTokenBalance scans and sums the wallet's unspent UTXOs for one
// token pool.
func (c *Client) PrivateTokenBalance(ctx context.Context, tokenName string) (TokenBalance, error) {
	token, err := FindToken(tokenName)
	if err != nil {
		return TokenBalance{}, err
	}
	mint, err := ledger.ParseAddress(token.Mint)
	if err != nil {
		return TokenBalance{}, err
	}
	utxos, err := c.scanner.ScanToken(ctx, token.Name, mint)
	if err != nil {
		return TokenBalance{}, err
	}
	return shield.TokenBalanceFromUtxos(utxos, token.UnitsPerToken()), nil
}

// Deposit shields lamports into the pool.
func (c *Client) Deposit(ctx context.Context, lamports uint64) (*Result, error) {
	return c.DepositWithReferrer(ctx, lamports, "")
}

// DepositWithReferrer shields lamports, crediting a referrer.
func (c *Client) DepositWithReferrer(ctx context.Context, lamports uint64, referrer string) (*Result, error) {
	fee, err := c.fees.DepositFee(ctx, lamports)
	if err != nil {
		return nil, err
	}
	return c.builder.Deposit(ctx, lamports, fee, referrer)
}

// DepositToken shields base units of a token pool.
func (c *Client) DepositToken(ctx context.Context, tokenName string, baseUnits uint64) (*Result, error) {
	token, err := FindToken(tokenName)
	if err != nil {
		return nil, err
	}
	mint, err := ledger.ParseAddress(token.Mint)
	if err != nil {
		return nil, err
	}
	fee, err := c.fees.DepositFee(ctx, baseUnits)
	if err != nil {
		return nil, err
	}
	return c.builder.DepositToken(ctx, token.Name, mint, baseUnits, fee, "")
}

// DepositUSDC shields base units of USDC.
func (c *Client) DepositUSDC(ctx context.Context, baseUnits uint64) (*Result, error) {
	return c.DepositToken(ctx, "USDC", baseUnits)
}

// Withdraw unshields lamports to recipient (empty means self). The
// protocol fee comes out of the withdrawn amount.
func (c *Client) Withdraw(ctx context.Context, lamports uint64, recipient string) (*Result, error) {
	to, err := c.resolveRecipient(recipient)
	if err != nil {
		return nil, err
	}
	fee, err := c.fees.WithdrawFee(ctx, lamports, nil)
	if err != nil {
		return nil, err
	}
	return c.builder.Withdraw(ctx, lamports, fee, to)
}

// WithdrawAll unshields the entire private native balance.
func (c *Client) WithdrawAll(ctx context.Context, recipient string) (*Result, error) {
	balance, err := c.PrivateBalance(ctx)
	if err != nil {
		return nil, err
	}
	if balance.Lamports == 0 {
		return nil, &InsufficientBalanceError{Need: 1, Have: 0}
	}
	return c.Withdraw(ctx, balance.Lamports, recipient)
}

// WithdrawToken unshields base units of a token pool.
func (c *Client) WithdrawToken(ctx context.Context, tokenName string, baseUnits uint64, recipient string) (*Result, error) {
	token, err := FindToken(tokenName)
	if err != nil {
		return nil, err
	}
	mint, err := ledger.ParseAddress(token.Mint)
	if err != nil {
		return nil, err
	}
	to, err := c.resolveRecipient(recipient)
	if err != nil {
		return nil, err
	}
	fee, err := c.fees.WithdrawFee(ctx, baseUnits, &token)
	if err != nil {
		return nil, err
	}
	return c.builder.WithdrawToken(ctx, token.Name, mint, baseUnits, fee, to)
}

// WithdrawUSDC unshields base units of USDC.
func (c *Client) WithdrawUSDC(ctx context.Context, baseUnits uint64, recipient string) (*Result, error) {
	return c.WithdrawToken(ctx, "USDC", baseUnits, recipient)
}

// WithdrawAllToken unshields the entire private balance of one token.
func (c *Client) WithdrawAllToken(ctx context.Context, tokenName, recipient string) (*Result, error) {
	balance, err := c.PrivateTokenBalance(ctx, tokenName)
	if err != nil {
		return nil, err
	}
	if balance.BaseUnits == 0 {
		return nil, &InsufficientBalanceError{Need: 1, Have: 0}
	}
	return c.WithdrawToken(ctx, tokenName, balance.BaseUnits, recipient)
}

// WithdrawAllUSDC unshields the entire private USDC balance.
func (c *Client) WithdrawAllUSDC(ctx context.Context, recipient string) (*Result, error) {
	return c.WithdrawAllToken(ctx, "USDC", recipient)
}

// Fees exposes the fee schedule cache.
func (c *Client) Fees() *FeeService {
	return c.fees
}

// RPC exposes the underlying ledger RPC client, for callers that need
// public-balance lookups outside the shielded flow.
func (c *Client) RPC() ledger.RPC {
	return c.rpc
}

// ClearCache drops the scanner's persisted checkpoints. The next scan
// rewalks the full log.
func (c *Client) ClearCache() error {
	return c.scanner.ClearCache()
}

func (c *Client) resolveRecipient(recipient string) (ledger.Address, error) {
	if recipient == "" {
		return c.wallet.Address(), nil
	}
	addr, err := ledger.ParseAddress(recipient)
	if err != nil {
		return ledger.Address{}, errors.Wrap(err, "recipient")
	}
	return addr, nil
}
