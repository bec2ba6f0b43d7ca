package domain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Standard is the token standard recorded on an Nft
type Standard string

const (
	StandardERC721  Standard = "ERC721"
	StandardERC1155 Standard = "ERC1155"
)

// EventType represents the type of a decoded contract event
type EventType string

const (
	EventTypeCollectionDeployed EventType = "collection_deployed"
	EventTypeTransfer           EventType = "transfer"
	EventTypeTransferSingle     EventType = "transfer_single"
	EventTypeListingAdd         EventType = "listing_add"
	EventTypeBuyWithFiat        EventType = "buy_with_fiat"
	EventTypeBuy                EventType = "buy"
)

// Event is a decoded contract log as published on the event bus.
// Params holds one of the *Params structs below, JSON encoded.
type Event struct {
	ChainID        uint64          `json:"chain_id"`
	SrcAddress     string          `json:"src_address"`
	BlockNumber    uint64          `json:"block_number"`
	BlockTimestamp int64           `json:"block_timestamp"`
	TxHash         string          `json:"tx_hash"`
	LogIndex       uint            `json:"log_index"`
	Type           EventType       `json:"type"`
	Params         json.RawMessage `json:"params"`
}

// NewEvent encodes params into a new event
func NewEvent(eventType EventType, chainID uint64, srcAddress string, params interface{}) (*Event, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s params: %w", eventType, err)
	}

	return &Event{
		ChainID:    chainID,
		SrcAddress: NormalizeAddress(srcAddress),
		Type:       eventType,
		Params:     raw,
	}, nil
}

// ID uniquely identifies the log that produced the event
func (e *Event) ID() string {
	return fmt.Sprintf("%d-%s-%d", e.ChainID, strings.ToLower(e.TxHash), e.LogIndex)
}

// Decode unmarshals the event params into v
func (e *Event) Decode(v interface{}) error {
	if len(e.Params) == 0 {
		return fmt.Errorf("%w: %s event %s has no params", ErrInvalidEvent, e.Type, e.ID())
	}
	if err := json.Unmarshal(e.Params, v); err != nil {
		return fmt.Errorf("%w: %s event %s: %w", ErrInvalidEvent, e.Type, e.ID(), err)
	}
	return nil
}

// CollectionDeployedParams is emitted by the factory when a token contract is deployed
type CollectionDeployedParams struct {
	TokenAddress string `json:"token_address"`
	Owner        string `json:"owner"`
	IsERC1155    bool   `json:"is_erc1155"`
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
	URI          string `json:"uri"`
}

// TransferParams is the ERC721 Transfer event
type TransferParams struct {
	From    string `json:"from"`
	To      string `json:"to"`
	TokenID string `json:"token_id"`
}

// TransferSingleParams is the ERC1155 TransferSingle event
type TransferSingleParams struct {
	Operator string `json:"operator"`
	From     string `json:"from"`
	To       string `json:"to"`
	ID       string `json:"id"`
	Value    string `json:"value"`
}

// ListingAddParams opens a marketplace listing
type ListingAddParams struct {
	ListingID    string `json:"listing_id"`
	Seller       string `json:"seller"`
	TokenAddress string `json:"token_address"`
	TokenID      string `json:"token_id"`
	Quantity     string `json:"quantity"`
	PriceInUSD   string `json:"price_in_usd"`
	Timestamp    string `json:"timestamp"`
}

// PurchaseParams is a listing fill, either paid by card (BuyWithFiat) or on-chain (Buy)
type PurchaseParams struct {
	ListingID    string `json:"listing_id"`
	Buyer        string `json:"buyer"`
	Seller       string `json:"seller"`
	TokenAddress string `json:"token_address"`
	TokenID      string `json:"token_id"`
	Quantity     string `json:"quantity"`
	PaidAmount   string `json:"paid_amount"`
	Currency     string `json:"currency"`
	Timestamp    string `json:"timestamp"`
}

// NftID returns the identifier of a token: "<collection>-<tokenId>"
func NftID(collection, tokenID string) string {
	return fmt.Sprintf("%s-%s", collection, tokenID)
}

// BalanceID returns the identifier of a transfer ledger record
func BalanceID(to, from, collection, tokenID, quantity string) string {
	return fmt.Sprintf("%s-%s-%s-%s-%s", to, from, collection, tokenID, quantity)
}

// OrderID returns the identifier of a purchase: "<seller>-<buyer>-<listingId>"
func OrderID(seller, buyer, listingID string) string {
	return fmt.Sprintf("%s-%s-%s", seller, buyer, listingID)
}

// NormalizeAddress returns the EIP-55 checksummed form of an ethereum address
func NormalizeAddress(address string) string {
	if !common.IsHexAddress(address) {
		return address
	}
	return common.HexToAddress(address).Hex()
}

// IsZeroAddress reports whether address is the zero address
func IsZeroAddress(address string) bool {
	return common.IsHexAddress(address) && common.HexToAddress(address) == common.Address{}
}

// ParseUint256 parses a base-10 token amount. Empty input is zero.
func ParseUint256(value string) (*big.Int, error) {
	if value == "" {
		return new(big.Int), nil
	}
	n, ok := new(big.Int).SetString(value, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("%w: invalid amount %q", ErrInvalidEvent, value)
	}
	return n, nil
}
