package ethereum

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/sokos-io/nft-indexer/internal/domain"
)

// eventsABI covers the factory, token and marketplace events the indexer consumes
var eventsABI = mustParseABI(`[
	{"anonymous":false,"type":"event","name":"CollectionDeployed","inputs":[
		{"indexed":true,"name":"tokenAddress","type":"address"},
		{"indexed":true,"name":"owner","type":"address"},
		{"indexed":false,"name":"isERC1155","type":"bool"},
		{"indexed":false,"name":"name","type":"string"},
		{"indexed":false,"name":"symbol","type":"string"},
		{"indexed":false,"name":"uri","type":"string"}]},
	{"anonymous":false,"type":"event","name":"Transfer","inputs":[
		{"indexed":true,"name":"from","type":"address"},
		{"indexed":true,"name":"to","type":"address"},
		{"indexed":true,"name":"tokenId","type":"uint256"}]},
	{"anonymous":false,"type":"event","name":"TransferSingle","inputs":[
		{"indexed":true,"name":"operator","type":"address"},
		{"indexed":true,"name":"from","type":"address"},
		{"indexed":true,"name":"to","type":"address"},
		{"indexed":false,"name":"id","type":"uint256"},
		{"indexed":false,"name":"value","type":"uint256"}]},
	{"anonymous":false,"type":"event","name":"ListingAdd","inputs":[
		{"indexed":true,"name":"listingId","type":"uint256"},
		{"indexed":true,"name":"seller","type":"address"},
		{"indexed":false,"name":"tokenAddress","type":"address"},
		{"indexed":false,"name":"tokenId","type":"uint256"},
		{"indexed":false,"name":"quantity","type":"uint256"},
		{"indexed":false,"name":"priceInUsd","type":"uint256"},
		{"indexed":false,"name":"timestamp","type":"uint256"}]},
	{"anonymous":false,"type":"event","name":"BuyWithFiat","inputs":[
		{"indexed":true,"name":"listingId","type":"uint256"},
		{"indexed":true,"name":"buyer","type":"address"},
		{"indexed":false,"name":"seller","type":"address"},
		{"indexed":false,"name":"tokenAddress","type":"address"},
		{"indexed":false,"name":"tokenId","type":"uint256"},
		{"indexed":false,"name":"quantity","type":"uint256"},
		{"indexed":false,"name":"paidAmount","type":"uint256"},
		{"indexed":false,"name":"currency","type":"string"},
		{"indexed":false,"name":"timestamp","type":"uint256"}]},
	{"anonymous":false,"type":"event","name":"Buy","inputs":[
		{"indexed":true,"name":"listingId","type":"uint256"},
		{"indexed":true,"name":"buyer","type":"address"},
		{"indexed":false,"name":"seller","type":"address"},
		{"indexed":false,"name":"tokenAddress","type":"address"},
		{"indexed":false,"name":"tokenId","type":"uint256"},
		{"indexed":false,"name":"quantity","type":"uint256"},
		{"indexed":false,"name":"paidAmount","type":"uint256"},
		{"indexed":false,"name":"currency","type":"address"},
		{"indexed":false,"name":"timestamp","type":"uint256"}]}
]`)

var (
	collectionDeployedSignature = eventsABI.Events["CollectionDeployed"].ID
	transferSignature           = eventsABI.Events["Transfer"].ID
	transferSingleSignature     = eventsABI.Events["TransferSingle"].ID
	listingAddSignature         = eventsABI.Events["ListingAdd"].ID
	buyWithFiatSignature        = eventsABI.Events["BuyWithFiat"].ID
	buySignature                = eventsABI.Events["Buy"].ID
)

// EventTopics returns the topic0 values of every indexed event, for use in a log filter
func EventTopics() []common.Hash {
	return []common.Hash{
		collectionDeployedSignature,
		transferSignature,
		transferSingleSignature,
		listingAddSignature,
		buyWithFiatSignature,
		buySignature,
	}
}

// IsCollectionDeployed reports whether vLog is a factory deployment
func IsCollectionDeployed(vLog types.Log) bool {
	return !vLog.Removed && len(vLog.Topics) > 0 && vLog.Topics[0] == collectionDeployedSignature
}

// ParseEventLog decodes vLog into an event. Logs the indexer does not consume
// (ERC20 transfers, unknown signatures, removed logs) return nil without error.
func ParseEventLog(chainID uint64, vLog types.Log, blockTimestamp int64) (*domain.Event, error) {
	if vLog.Removed || len(vLog.Topics) == 0 {
		return nil, nil
	}

	var (
		eventType domain.EventType
		params    interface{}
		err       error
	)

	switch vLog.Topics[0] {
	case collectionDeployedSignature:
		eventType = domain.EventTypeCollectionDeployed
		params, err = parseCollectionDeployed(vLog)

	case transferSignature:
		// ERC20 shares the signature but has no indexed token id
		if len(vLog.Topics) != 4 {
			return nil, nil
		}
		eventType = domain.EventTypeTransfer
		params, err = parseTransfer(vLog)

	case transferSingleSignature:
		eventType = domain.EventTypeTransferSingle
		params, err = parseTransferSingle(vLog)

	case listingAddSignature:
		eventType = domain.EventTypeListingAdd
		params, err = parseListingAdd(vLog)

	case buyWithFiatSignature:
		eventType = domain.EventTypeBuyWithFiat
		params, err = parsePurchase("BuyWithFiat", vLog)

	case buySignature:
		eventType = domain.EventTypeBuy
		params, err = parsePurchase("Buy", vLog)

	default:
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to decode %s log %s:%d: %w", eventType, vLog.TxHash.Hex(), vLog.Index, err)
	}

	event, err := domain.NewEvent(eventType, chainID, vLog.Address.Hex(), params)
	if err != nil {
		return nil, err
	}
	event.BlockNumber = vLog.BlockNumber
	event.BlockTimestamp = blockTimestamp
	event.TxHash = vLog.TxHash.Hex()
	event.LogIndex = vLog.Index

	return event, nil
}

// unpackLog decodes the indexed topics and the data section of vLog into a single map
func unpackLog(name string, vLog types.Log) (map[string]interface{}, error) {
	event := eventsABI.Events[name]

	var indexed abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(vLog.Topics) != len(indexed)+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(vLog.Topics))
	}

	fields := make(map[string]interface{})
	if err := abi.ParseTopicsIntoMap(fields, indexed, vLog.Topics[1:]); err != nil {
		return nil, fmt.Errorf("failed to parse topics: %w", err)
	}
	if err := event.Inputs.UnpackIntoMap(fields, vLog.Data); err != nil {
		return nil, fmt.Errorf("failed to unpack data: %w", err)
	}

	return fields, nil
}

func addressField(fields map[string]interface{}, name string) (string, error) {
	addr, ok := fields[name].(common.Address)
	if !ok {
		return "", fmt.Errorf("field %s is not an address", name)
	}
	return addr.Hex(), nil
}

func uintField(fields map[string]interface{}, name string) (string, error) {
	n, ok := fields[name].(*big.Int)
	if !ok || n == nil {
		return "", fmt.Errorf("field %s is not a uint256", name)
	}
	return n.String(), nil
}

func stringField(fields map[string]interface{}, name string) (string, error) {
	s, ok := fields[name].(string)
	if !ok {
		return "", fmt.Errorf("field %s is not a string", name)
	}
	return s, nil
}

// fieldReader collects the first decoding error so parsers can read fields in sequence
type fieldReader struct {
	fields map[string]interface{}
	err    error
}

func (r *fieldReader) address(name string) string {
	if r.err != nil {
		return ""
	}
	v, err := addressField(r.fields, name)
	r.err = err
	return v
}

func (r *fieldReader) number(name string) string {
	if r.err != nil {
		return ""
	}
	v, err := uintField(r.fields, name)
	r.err = err
	return v
}

func (r *fieldReader) text(name string) string {
	if r.err != nil {
		return ""
	}
	v, err := stringField(r.fields, name)
	r.err = err
	return v
}

func (r *fieldReader) flag(name string) bool {
	if r.err != nil {
		return false
	}
	v, ok := r.fields[name].(bool)
	if !ok {
		r.err = fmt.Errorf("field %s is not a bool", name)
	}
	return v
}

func newFieldReader(name string, vLog types.Log) (*fieldReader, error) {
	fields, err := unpackLog(name, vLog)
	if err != nil {
		return nil, err
	}
	return &fieldReader{fields: fields}, nil
}

func parseCollectionDeployed(vLog types.Log) (*domain.CollectionDeployedParams, error) {
	r, err := newFieldReader("CollectionDeployed", vLog)
	if err != nil {
		return nil, err
	}

	params := &domain.CollectionDeployedParams{
		TokenAddress: r.address("tokenAddress"),
		Owner:        r.address("owner"),
		IsERC1155:    r.flag("isERC1155"),
		Name:         r.text("name"),
		Symbol:       r.text("symbol"),
		URI:          r.text("uri"),
	}
	return params, r.err
}

func parseTransfer(vLog types.Log) (*domain.TransferParams, error) {
	r, err := newFieldReader("Transfer", vLog)
	if err != nil {
		return nil, err
	}

	params := &domain.TransferParams{
		From:    r.address("from"),
		To:      r.address("to"),
		TokenID: r.number("tokenId"),
	}
	return params, r.err
}

func parseTransferSingle(vLog types.Log) (*domain.TransferSingleParams, error) {
	r, err := newFieldReader("TransferSingle", vLog)
	if err != nil {
		return nil, err
	}

	params := &domain.TransferSingleParams{
		Operator: r.address("operator"),
		From:     r.address("from"),
		To:       r.address("to"),
		ID:       r.number("id"),
		Value:    r.number("value"),
	}
	return params, r.err
}

func parseListingAdd(vLog types.Log) (*domain.ListingAddParams, error) {
	r, err := newFieldReader("ListingAdd", vLog)
	if err != nil {
		return nil, err
	}

	params := &domain.ListingAddParams{
		ListingID:    r.number("listingId"),
		Seller:       r.address("seller"),
		TokenAddress: r.address("tokenAddress"),
		TokenID:      r.number("tokenId"),
		Quantity:     r.number("quantity"),
		PriceInUSD:   r.number("priceInUsd"),
		Timestamp:    r.number("timestamp"),
	}
	return params, r.err
}

// parsePurchase decodes BuyWithFiat (currency is an ISO code) and Buy (currency is an ERC20 address)
func parsePurchase(name string, vLog types.Log) (*domain.PurchaseParams, error) {
	r, err := newFieldReader(name, vLog)
	if err != nil {
		return nil, err
	}

	params := &domain.PurchaseParams{
		ListingID:    r.number("listingId"),
		Buyer:        r.address("buyer"),
		Seller:       r.address("seller"),
		TokenAddress: r.address("tokenAddress"),
		TokenID:      r.number("tokenId"),
		Quantity:     r.number("quantity"),
		PaidAmount:   r.number("paidAmount"),
		Timestamp:    r.number("timestamp"),
	}
	if name == "Buy" {
		params.Currency = r.address("currency")
	} else {
		params.Currency = r.text("currency")
	}
	return params, r.err
}
