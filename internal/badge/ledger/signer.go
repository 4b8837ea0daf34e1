package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"skillbadge/internal/badge/ports"
	id "skillbadge/pkg/domain"
	"skillbadge/pkg/platform/sentinel"
)

// WalletDirectory resolves a user's linked ledger address.
type WalletDirectory interface {
	WalletAddress(ctx context.Context, userID id.UserID) (string, error)
}

// RPCSignerProvider hands out signers backed by a JSON-RPC endpoint that
// manages user accounts (a custodial node or an external signer such as Clef).
// Each Acquire opens its own connection which the release func closes.
type RPCSignerProvider struct {
	endpoint string
	contract *Contract
	wallets  WalletDirectory
	gasLimit uint64
	logger   *slog.Logger
}

// SignerOption configures an RPCSignerProvider.
type SignerOption func(*RPCSignerProvider)

// WithGasLimit pins the gas limit on submitted transactions instead of
// letting the node estimate it.
func WithGasLimit(limit uint64) SignerOption {
	return func(p *RPCSignerProvider) {
		p.gasLimit = limit
	}
}

// WithSignerLogger sets the logger.
func WithSignerLogger(logger *slog.Logger) SignerOption {
	return func(p *RPCSignerProvider) {
		p.logger = logger
	}
}

// NewRPCSignerProvider creates a provider for endpoint.
func NewRPCSignerProvider(endpoint string, contract *Contract, wallets WalletDirectory, opts ...SignerOption) *RPCSignerProvider {
	p := &RPCSignerProvider{
		endpoint: endpoint,
		contract: contract,
		wallets:  wallets,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Acquire resolves the user's wallet and opens a signer session for it.
// The returned release func must be called on every path.
func (p *RPCSignerProvider) Acquire(ctx context.Context, userID id.UserID) (ports.Signer, func(), error) {
	wallet, err := p.wallets.WalletAddress(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, ErrNoWallet
		}
		return nil, nil, fmt.Errorf("resolve wallet: %w", err)
	}
	if !common.IsHexAddress(wallet) {
		return nil, nil, ErrNoWallet
	}

	client, err := rpc.DialContext(ctx, p.endpoint)
	if err != nil {
		return nil, nil, &SignerError{Op: "dial", Err: err}
	}

	account := common.HexToAddress(wallet)
	var accounts []common.Address
	if err := client.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		client.Close()
		return nil, nil, &SignerError{Op: "accounts", Err: err}
	}
	managed := false
	for _, a := range accounts {
		if a == account {
			managed = true
			break
		}
	}
	if !managed {
		client.Close()
		return nil, nil, &SignerError{Op: "accounts", Err: fmt.Errorf("account %s not managed by signer", account.Hex())}
	}

	s := &rpcSigner{client: client, account: account, contract: p.contract, gasLimit: p.gasLimit}
	release := func() {
		client.Close()
		p.logger.DebugContext(ctx, "signer released", "account", account.Hex())
	}
	return s, release, nil
}

type rpcSigner struct {
	client   *rpc.Client
	account  common.Address
	contract *Contract
	gasLimit uint64
}

type sendTxArgs struct {
	From common.Address  `json:"from"`
	To   common.Address  `json:"to"`
	Data hexutil.Bytes   `json:"data"`
	Gas  *hexutil.Uint64 `json:"gas,omitempty"`
}

func (s *rpcSigner) Address() string {
	return s.account.Hex()
}

// SubmitMint sends mintBadge(account, cluster) from the user's account.
// A returned hash means the transaction was broadcast. Only a JSON-RPC error
// response proves it was not; any other failure wraps ErrSubmissionUnknown.
func (s *rpcSigner) SubmitMint(ctx context.Context, cluster string) (string, error) {
	data, err := s.contract.PackMint(s.account, cluster)
	if err != nil {
		return "", fmt.Errorf("pack mint: %w", err)
	}
	args := sendTxArgs{From: s.account, To: s.contract.Address(), Data: data}
	if s.gasLimit > 0 {
		gas := hexutil.Uint64(s.gasLimit)
		args.Gas = &gas
	}
	var hash common.Hash
	if err := s.client.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			return "", &SignerError{Op: "send", Err: err}
		}
		return "", fmt.Errorf("%w: %w", ErrSubmissionUnknown, err)
	}
	return hash.Hex(), nil
}
