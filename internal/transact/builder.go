// builder.go - Assembles, proves and submits shielded transactions.
//
// One Builder call is a strictly sequential pipeline: select inputs,
// construct outputs, prove, encode, relay, confirm. Retrying a failed
// call is safe because input selection re-reads live state each time.

package transact

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"shieldpool/internal/ledger"
	"shieldpool/internal/prover"
	"shieldpool/internal/relayer"
	"shieldpool/internal/scan"
	"shieldpool/internal/shield"
)

const (
	confirmInterval = 2 * time.Second
	confirmRetries  = 10
)

// Builder drives deposit and withdraw operations for one wallet.
type Builder struct {
	rpc          ledger.RPC
	relay        *relayer.Client
	enc          *shield.EncryptionService
	scanner      *scan.Scanner
	prove        prover.Prover
	wallet       *ledger.Wallet
	program      ledger.Address
	feeRecipient ledger.Address
	levels       int
	log          zerolog.Logger

	confirmInterval time.Duration
	confirmRetries  int
}

// NewBuilder wires a builder from its collaborators.
func NewBuilder(rpc ledger.RPC, relay *relayer.Client, enc *shield.EncryptionService,
	scanner *scan.Scanner, prove prover.Prover, wallet *ledger.Wallet,
	program, feeRecipient ledger.Address, log zerolog.Logger) *Builder {
	return &Builder{
		rpc:             rpc,
		relay:           relay,
		enc:             enc,
		scanner:         scanner,
		prove:           prove,
		wallet:          wallet,
		program:         program,
		feeRecipient:    feeRecipient,
		levels:          shield.DefaultTreeDepth,
		log:             log.With().Str("component", "builder").Logger(),
		confirmInterval: confirmInterval,
		confirmRetries:  confirmRetries,
	}
}

// txParams describes one shielded transaction. An empty token selects
// the native pool; extAmount is positive for deposits, negative for
// withdrawals.
type txParams struct {
	token     string
	mint      ledger.Address
	assetID   string
	extAmount int64
	fee       uint64
	recipient ledger.Address
	referrer  string
}

// Result reports a submitted transaction.
type Result struct {
	// Signature is the ledger signature the relayer reported.
	Signature string
	// OutputAmount is the value of the new shielded note in base units.
	OutputAmount uint64
}

func (b *Builder) transact(ctx context.Context, p txParams) (*Result, error) {
	utxos, err := b.scanUnspent(ctx, p)
	if err != nil {
		return nil, err
	}

	state, err := b.relay.Root(ctx, p.token)
	if err != nil {
		return nil, err
	}
	root, ok := new(big.Int).SetString(state.Root, 10)
	if !ok {
		return nil, errors.Wrapf(shield.ErrSerialization, "indexer root is not decimal: %q", state.Root)
	}

	keypair, err := b.enc.UtxoKeypair(shield.V2)
	if err != nil {
		return nil, err
	}

	inputs, paths, err := b.selectInputs(ctx, utxos, keypair, root, p)
	if err != nil {
		return nil, err
	}

	inSum := new(big.Int)
	for _, u := range inputs {
		inSum.Add(inSum, u.Amount)
	}
	outSum := new(big.Int).Add(inSum, big.NewInt(p.extAmount))
	outSum.Sub(outSum, new(big.Int).SetUint64(p.fee))
	if outSum.Sign() < 0 {
		need := new(big.Int).Neg(outSum)
		need.Add(need, inSum)
		return nil, &shield.InsufficientBalanceError{Need: need.Uint64(), Have: inSum.Uint64()}
	}

	outputs := [prover.Outputs]*shield.Utxo{
		shield.NewUtxo(outSum, keypair, state.NextIndex, p.assetID, shield.V2),
		shield.NewUtxo(big.NewInt(0), keypair, state.NextIndex+1, p.assetID, shield.V2),
	}
	enc1, err := b.enc.EncryptUtxo(outputs[0])
	if err != nil {
		return nil, err
	}
	enc2, err := b.enc.EncryptUtxo(outputs[1])
	if err != nil {
		return nil, err
	}

	ext := &ExtData{
		Recipient:        p.recipient,
		ExtAmount:        p.extAmount,
		EncryptedOutput1: enc1,
		EncryptedOutput2: enc2,
		Fee:              p.fee,
		FeeRecipient:     b.feeRecipient,
		MintAddress:      p.mint,
	}

	input, err := b.circuitInput(state.Root, ext, inputs, paths, outputs, p)
	if err != nil {
		return nil, err
	}

	b.log.Info().Int64("ext_amount", p.extAmount).Uint64("fee", p.fee).Msg("generating proof")
	proof, signals, err := b.prove.Prove(ctx, input)
	if err != nil {
		return nil, errors.Wrap(err, "prove transaction")
	}
	signalBytes, err := packSignals(signals)
	if err != nil {
		return nil, err
	}

	instruction, err := EncodeInstruction(p.token != "", proof, signalBytes, ext)
	if err != nil {
		return nil, err
	}
	signedTx, err := b.signTransaction(instruction)
	if err != nil {
		return nil, err
	}

	sig, err := b.relay.Submit(ctx, signedTx, b.wallet.Address().String(), p.mint.String(), p.referrer)
	if err != nil {
		return nil, err
	}

	if err := b.waitConfirmation(ctx, hex.EncodeToString(enc1), p.token); err != nil {
		return nil, err
	}
	return &Result{Signature: sig, OutputAmount: outputs[0].AmountUint64()}, nil
}

func (b *Builder) scanUnspent(ctx context.Context, p txParams) ([]*shield.Utxo, error) {
	if p.token == "" {
		return b.scanner.Scan(ctx)
	}
	return b.scanner.ScanToken(ctx, p.token, p.mint)
}

// selectInputs picks up to two real UTXOs with live inclusion proofs,
// padding with zero-amount dummies carrying an all-zero path.
func (b *Builder) selectInputs(ctx context.Context, utxos []*shield.Utxo,
	keypair *shield.Keypair, root *big.Int, p txParams) ([prover.Inputs]*shield.Utxo, [prover.Inputs]*shield.MerklePath, error) {

	var inputs [prover.Inputs]*shield.Utxo
	var paths [prover.Inputs]*shield.MerklePath

	for i := 0; i < prover.Inputs; i++ {
		if i >= len(utxos) {
			inputs[i] = shield.DummyUtxo(keypair, p.assetID)
			paths[i] = shield.ZeroPath(b.levels)
			continue
		}
		u := utxos[i]
		cm, err := u.Commitment()
		if err != nil {
			return inputs, paths, err
		}
		proof, err := b.relay.Proof(ctx, cm.String(), p.token)
		if err != nil {
			return inputs, paths, err
		}
		path, err := parsePath(proof)
		if err != nil {
			return inputs, paths, err
		}
		if !path.Verify(cm, root) {
			return inputs, paths, &shield.MerkleProofError{Reason: "inclusion proof does not match current root"}
		}
		inputs[i] = u
		paths[i] = path
	}
	return inputs, paths, nil
}

func parsePath(proof *relayer.MerkleProof) (*shield.MerklePath, error) {
	path := &shield.MerklePath{
		Elements: make([]*big.Int, len(proof.PathElements)),
		Indices:  append([]int(nil), proof.PathIndices...),
	}
	for i, el := range proof.PathElements {
		v, ok := new(big.Int).SetString(el, 10)
		if !ok {
			return nil, errors.Wrapf(shield.ErrSerialization, "path element %d is not decimal: %q", i, el)
		}
		path.Elements[i] = v
	}
	return path, nil
}

func (b *Builder) circuitInput(root string, ext *ExtData,
	inputs [prover.Inputs]*shield.Utxo, paths [prover.Inputs]*shield.MerklePath,
	outputs [prover.Outputs]*shield.Utxo, p txParams) (*prover.CircuitInput, error) {

	mintField, err := shield.AssetField(p.assetID)
	if err != nil {
		return nil, err
	}

	input := &prover.CircuitInput{
		Root:         root,
		PublicAmount: PublicAmount(p.extAmount, p.fee).String(),
		ExtDataHash:  ext.HashField().String(),
		MintAddress:  mintField.String(),
	}
	for i, u := range inputs {
		nf, err := u.Nullifier()
		if err != nil {
			return nil, err
		}
		input.InputNullifier[i] = nf.String()
		input.InAmount[i] = u.Amount.String()
		input.InPrivateKey[i] = u.Owner.Private().String()
		input.InBlinding[i] = u.Blinding.String()
		input.InPathIndices[i] = u.Index
		elements := make([]string, len(paths[i].Elements))
		for j, el := range paths[i].Elements {
			elements[j] = el.String()
		}
		input.InPathElements[i] = elements
	}
	for i, u := range outputs {
		cm, err := u.Commitment()
		if err != nil {
			return nil, err
		}
		input.OutputCommitment[i] = cm.String()
		input.OutAmount[i] = u.Amount.String()
		input.OutBlinding[i] = u.Blinding.String()
		input.OutPubkey[i] = u.Owner.Public().String()
	}
	return input, nil
}

func packSignals(signals []*big.Int) ([][32]byte, error) {
	if len(signals) > maxSignals {
		return nil, errors.Errorf("prover returned %d public signals, at most %d fit", len(signals), maxSignals)
	}
	out := make([][32]byte, len(signals))
	for i, s := range signals {
		if s.BitLen() > 256 {
			return nil, errors.Errorf("public signal %d exceeds 32 bytes", i)
		}
		s.FillBytes(out[i][:])
	}
	return out, nil
}

// signedEnvelope is the relayer's expected transaction wrapper: the raw
// instruction plus the sender's signature over it.
type signedEnvelope struct {
	Message   string `json:"message"`
	Signature string `json:"signature"`
	Signer    string `json:"signer"`
}

func (b *Builder) signTransaction(instruction []byte) (string, error) {
	envelope := signedEnvelope{
		Message:   base64.StdEncoding.EncodeToString(instruction),
		Signature: base64.StdEncoding.EncodeToString(b.wallet.SignMessage(instruction)),
		Signer:    b.wallet.Address().String(),
	}
	encoded, err := json.Marshal(envelope)
	if err != nil {
		return "", errors.Wrap(shield.ErrSerialization, err.Error())
	}
	return base64.StdEncoding.EncodeToString(encoded), nil
}

// waitConfirmation polls the indexer until it has seen the first
// encrypted output. The transaction may still land after a timeout;
// this bounds only the client's wait.
func (b *Builder) waitConfirmation(ctx context.Context, encryptedHex, token string) error {
	for retry := 0; retry < b.confirmRetries; retry++ {
		select {
		case <-ctx.Done():
			return errors.Wrap(shield.ErrAborted, "confirmation wait cancelled")
		case <-time.After(b.confirmInterval):
		}
		exists, err := b.relay.Exists(ctx, encryptedHex, token)
		if err != nil {
			// The transaction may already have landed; a flaky poll must
			// not abort the wait. Only the retry budget ends it.
			b.log.Warn().Err(err).Int("retry", retry+1).Msg("confirmation poll failed")
			continue
		}
		if exists {
			return nil
		}
		b.log.Info().Int("retry", retry+1).Msg("waiting for confirmation")
	}
	return &shield.ConfirmationTimeoutError{Retries: b.confirmRetries}
}
