package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"skillbadge/internal/badge/models"
)

// ReceiptReader is satisfied by *ethclient.Client.
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Watcher waits for mint transactions to confirm.
type Watcher struct {
	reader   ReceiptReader
	contract *Contract
	timeout  time.Duration
	interval time.Duration
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithConfirmTimeout bounds AwaitMint. Default is 2 minutes.
func WithConfirmTimeout(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithPollInterval sets the receipt polling interval. Default is 2 seconds.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher creates a confirmation watcher.
func NewWatcher(reader ReceiptReader, contract *Contract, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		reader:   reader,
		contract: contract,
		timeout:  2 * time.Minute,
		interval: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// AwaitMint polls for the receipt of txHash until it confirms or the
// confirmation timeout passes. A timeout yields ErrUnconfirmed, which is
// distinct from ErrReverted. Cancelling ctx also yields ErrUnconfirmed.
func (w *Watcher) AwaitMint(ctx context.Context, txHash string) (models.MintReceipt, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	hash := common.HexToHash(txHash)
	var receipt *types.Receipt
	op := func() error {
		r, err := w.reader.TransactionReceipt(ctx, hash)
		if err != nil {
			if errors.Is(err, ethereum.NotFound) {
				return ErrPending
			}
			// RPC hiccups are retried until the deadline.
			return err
		}
		receipt = r
		return nil
	}

	policy := backoff.WithContext(backoff.NewConstantBackOff(w.interval), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		if ctx.Err() != nil || errors.Is(err, ErrPending) {
			return models.MintReceipt{}, fmt.Errorf("%w: %s", ErrUnconfirmed, txHash)
		}
		return models.MintReceipt{}, err
	}
	return w.contract.ReceiptFrom(receipt)
}

// CheckMint reads the receipt once. It returns ErrPending while the
// transaction has not been mined.
func (w *Watcher) CheckMint(ctx context.Context, txHash string) (models.MintReceipt, error) {
	r, err := w.reader.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return models.MintReceipt{}, ErrPending
		}
		return models.MintReceipt{}, fmt.Errorf("read receipt: %w", err)
	}
	return w.contract.ReceiptFrom(r)
}
