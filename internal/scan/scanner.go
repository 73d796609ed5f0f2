// scanner.go - Reconstructs the owner's unspent set from the encrypted log.
//
// The indexer serves every encrypted output ever created; ownership is
// established by trial decryption, never by trusting a remote filter.
// Progress (fetch offset, owned ciphertexts) is checkpointed so repeat
// scans only walk new log entries.

package scan

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"shieldpool/internal/ledger"
	"shieldpool/internal/relayer"
	"shieldpool/internal/shield"
	"shieldpool/internal/storage"
)

const (
	// pageSize bounds one log request.
	defaultPageSize = 100
	// pageDelay throttles successive page fetches.
	defaultPageDelay = 20 * time.Millisecond

	offsetKeyPrefix  = "fetch_offset_"
	outputsKeyPrefix = "encrypted_outputs_"
)

// Scanner walks the encrypted output log for one owner.
type Scanner struct {
	rpc     ledger.RPC
	idx     *relayer.Client
	enc     *shield.EncryptionService
	store   storage.Backend
	program ledger.Address
	owner   ledger.Address
	log     zerolog.Logger

	pageSize  uint64
	pageDelay time.Duration
}

// New builds a scanner for the owner's view of the pool at program.
func New(rpc ledger.RPC, idx *relayer.Client, enc *shield.EncryptionService,
	store storage.Backend, program, owner ledger.Address, log zerolog.Logger) *Scanner {
	return &Scanner{
		rpc:       rpc,
		idx:       idx,
		enc:       enc,
		store:     store,
		program:   program,
		owner:     owner,
		log:       log.With().Str("component", "scanner").Logger(),
		pageSize:  defaultPageSize,
		pageDelay: defaultPageDelay,
	}
}

// Scan returns the owner's unspent native UTXOs.
func (s *Scanner) Scan(ctx context.Context) ([]*shield.Utxo, error) {
	return s.scan(ctx, "", s.owner.String(), "")
}

// ScanToken returns the owner's unspent UTXOs for one token pool. The
// cache is keyed by the owner's associated token account so per-token
// progress is independent. Decrypted UTXOs carrying a different asset id
// than the scanned mint are dropped: they belong to another pool and can
// never be spent here.
func (s *Scanner) ScanToken(ctx context.Context, token string, mint ledger.Address) ([]*shield.Utxo, error) {
	account := ledger.AssociatedTokenAddress(s.program, s.owner, mint)
	return s.scan(ctx, token, account.String(), mint.String())
}

type ownedOutput struct {
	utxo *shield.Utxo
	hex  string
}

func (s *Scanner) scan(ctx context.Context, token, account, assetID string) ([]*shield.Utxo, error) {
	offset, err := s.loadOffset(account)
	if err != nil {
		return nil, err
	}

	var owned []ownedOutput
	seen := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(shield.ErrAborted, "scan cancelled between pages")
		default:
		}

		page, err := s.idx.Range(ctx, offset, offset+s.pageSize, token)
		if err != nil {
			return nil, err
		}

		pageOwned, err := s.claimPage(ctx, page.EncryptedOutputs, token, assetID)
		if err != nil {
			return nil, err
		}
		for _, o := range pageOwned {
			if !seen[o.hex] {
				seen[o.hex] = true
				owned = append(owned, o)
			}
		}

		offset += uint64(len(page.EncryptedOutputs))
		if err := s.saveOffset(account, offset); err != nil {
			return nil, err
		}
		s.log.Debug().
			Uint64("offset", offset).
			Int("owned", len(owned)).
			Msg("scanned page")

		if !page.HasMore || len(page.EncryptedOutputs) == 0 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(shield.ErrAborted, "scan cancelled between pages")
		case <-time.After(s.pageDelay):
		}
	}

	// Merge the previous runs' owned ciphertexts: a decode hiccup at a
	// page boundary must not lose a UTXO forever.
	cached, err := s.loadOutputs(account)
	if err != nil {
		return nil, err
	}
	for _, encHex := range cached {
		if seen[encHex] {
			continue
		}
		u, err := s.enc.DecryptUtxoHex(encHex)
		if err != nil {
			continue
		}
		if assetID != "" && u.AssetID != assetID {
			continue
		}
		seen[encHex] = true
		owned = append(owned, ownedOutput{utxo: u, hex: encHex})
	}
	if err := s.saveOutputs(account, owned); err != nil {
		return nil, err
	}

	return s.unspent(ctx, owned)
}

// claimPage trial-decrypts one page and resolves authoritative indices
// for the outputs that turn out to be ours. A non-empty assetID drops
// decrypted UTXOs minted under a different asset.
func (s *Scanner) claimPage(ctx context.Context, outputs []string, token, assetID string) ([]ownedOutput, error) {
	var owned []ownedOutput
	for _, encHex := range outputs {
		u, err := s.enc.DecryptUtxoHex(encHex)
		if err != nil {
			continue // not ours
		}
		if assetID != "" && u.AssetID != assetID {
			continue
		}
		owned = append(owned, ownedOutput{utxo: u, hex: encHex})
	}
	if len(owned) == 0 {
		return nil, nil
	}

	hexes := make([]string, len(owned))
	for i, o := range owned {
		hexes[i] = o.hex
	}
	indices, err := s.idx.Indices(ctx, hexes, token)
	if err != nil {
		return nil, err
	}
	for i := range owned {
		owned[i].utxo.Index = indices[i]
	}
	return owned, nil
}

// unspent drops zero-amount UTXOs and anything whose nullifier accounts
// already exist on the ledger.
func (s *Scanner) unspent(ctx context.Context, owned []ownedOutput) ([]*shield.Utxo, error) {
	var candidates []*shield.Utxo
	var accounts []ledger.Address
	for _, o := range owned {
		if o.utxo.IsDummy() {
			continue
		}
		nf, err := o.utxo.Nullifier()
		if err != nil {
			return nil, err
		}
		a0, a1 := ledger.NullifierAccounts(s.program, ledger.NullifierBytes(nf))
		candidates = append(candidates, o.utxo)
		accounts = append(accounts, a0, a1)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	exists, err := s.rpc.AccountsExist(ctx, accounts)
	if err != nil {
		return nil, err
	}

	var result []*shield.Utxo
	for i, u := range candidates {
		if exists[2*i] || exists[2*i+1] {
			continue // spent
		}
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Index < result[j].Index })
	s.log.Info().
		Int("owned", len(candidates)).
		Int("unspent", len(result)).
		Msg("scan complete")
	return result, nil
}

// storageKey namespaces cache entries by pool and account.
func (s *Scanner) storageKey(prefix, account string) string {
	return prefix + s.program.String()[:6] + "_" + account
}

func (s *Scanner) loadOffset(account string) (uint64, error) {
	raw, err := s.store.Get(s.storageKey(offsetKeyPrefix, account))
	if err != nil {
		return 0, errors.Wrap(err, "load fetch offset")
	}
	if raw == "" {
		return 0, nil
	}
	offset, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		// A corrupt checkpoint restarts the scan from the beginning.
		s.log.Warn().Str("value", raw).Msg("discarding corrupt fetch offset")
		return 0, nil
	}
	return offset, nil
}

func (s *Scanner) saveOffset(account string, offset uint64) error {
	err := s.store.Set(s.storageKey(offsetKeyPrefix, account), strconv.FormatUint(offset, 10))
	return errors.Wrap(err, "persist fetch offset")
}

func (s *Scanner) loadOutputs(account string) ([]string, error) {
	raw, err := s.store.Get(s.storageKey(outputsKeyPrefix, account))
	if err != nil {
		return nil, errors.Wrap(err, "load cached outputs")
	}
	if raw == "" {
		return nil, nil
	}
	var outputs []string
	if err := json.Unmarshal([]byte(raw), &outputs); err != nil {
		s.log.Warn().Msg("discarding corrupt output cache")
		return nil, nil
	}
	return outputs, nil
}

func (s *Scanner) saveOutputs(account string, owned []ownedOutput) error {
	unique := make(map[string]bool, len(owned))
	outputs := make([]string, 0, len(owned))
	for _, o := range owned {
		if unique[o.hex] {
			continue
		}
		unique[o.hex] = true
		outputs = append(outputs, o.hex)
	}
	sort.Strings(outputs)
	encoded, err := json.Marshal(outputs)
	if err != nil {
		return errors.Wrap(err, "encode output cache")
	}
	return errors.Wrap(s.store.Set(s.storageKey(outputsKeyPrefix, account), string(encoded)), "persist output cache")
}

// ClearCache drops the scanner's checkpoints for every account.
func (s *Scanner) ClearCache() error {
	return s.store.Clear()
}
