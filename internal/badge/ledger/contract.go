// Package ledger talks to the badge contract: it encodes mint calls, submits
// them through a signer, and reads confirmed receipts back.
package ledger

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"skillbadge/internal/badge/models"
)

// BadgeABI is the subset of the badge contract this service uses.
const BadgeABI = `[
  {"type":"function","name":"mintBadge","stateMutability":"nonpayable",
   "inputs":[{"name":"to","type":"address"},{"name":"cluster","type":"string"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"BadgeMinted","anonymous":false,
   "inputs":[
     {"name":"recipient","type":"address","indexed":true},
     {"name":"tokenId","type":"uint256","indexed":true},
     {"name":"cluster","type":"string","indexed":false},
     {"name":"tokenURI","type":"string","indexed":false}]},
  {"type":"event","name":"Transfer","anonymous":false,
   "inputs":[
     {"name":"from","type":"address","indexed":true},
     {"name":"to","type":"address","indexed":true},
     {"name":"tokenId","type":"uint256","indexed":true}]}
]`

const (
	mintMethod = "mintBadge"
	mintEvent  = "BadgeMinted"
)

// Contract binds the badge ABI to a deployed address.
type Contract struct {
	address common.Address
	abi     abi.ABI
	indexed abi.Arguments
}

// NewContract parses the ABI for the contract at address.
func NewContract(address string) (*Contract, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid contract address %q", address)
	}
	parsed, err := abi.JSON(strings.NewReader(BadgeABI))
	if err != nil {
		return nil, fmt.Errorf("parse badge abi: %w", err)
	}
	var indexed abi.Arguments
	for _, arg := range parsed.Events[mintEvent].Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return &Contract{address: common.HexToAddress(address), abi: parsed, indexed: indexed}, nil
}

// Address returns the contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

// PackMint encodes mintBadge(to, cluster).
func (c *Contract) PackMint(to common.Address, cluster string) ([]byte, error) {
	return c.abi.Pack(mintMethod, to, cluster)
}

// ExtractMint scans receipt logs for the mint event. Logs from other contracts
// or with other signatures are skipped, as are entries that fail to decode;
// the first decodable match wins.
func (c *Contract) ExtractMint(logs []*types.Log) (tokenID, tokenURI string, err error) {
	eventID := c.abi.Events[mintEvent].ID
	for _, l := range logs {
		if l == nil || l.Address != c.address || len(l.Topics) == 0 || l.Topics[0] != eventID {
			continue
		}
		fields := make(map[string]any)
		if err := c.abi.UnpackIntoMap(fields, mintEvent, l.Data); err != nil {
			continue
		}
		if err := abi.ParseTopicsIntoMap(fields, c.indexed, l.Topics[1:]); err != nil {
			continue
		}
		id, ok := fields["tokenId"].(*big.Int)
		if !ok || id == nil {
			continue
		}
		uri, _ := fields["tokenURI"].(string)
		return id.String(), uri, nil
	}
	return "", "", ErrEventNotFound
}

// ReceiptFrom builds a MintReceipt from a successful receipt.
func (c *Contract) ReceiptFrom(r *types.Receipt) (models.MintReceipt, error) {
	if r.Status != types.ReceiptStatusSuccessful {
		return models.MintReceipt{}, ErrReverted
	}
	tokenID, tokenURI, err := c.ExtractMint(r.Logs)
	if err != nil {
		return models.MintReceipt{}, err
	}
	var block uint64
	if r.BlockNumber != nil {
		block = r.BlockNumber.Uint64()
	}
	return models.MintReceipt{
		TokenID:     tokenID,
		TokenURI:    tokenURI,
		TxHash:      r.TxHash.Hex(),
		BlockNumber: block,
	}, nil
}
