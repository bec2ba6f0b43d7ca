// Package reconciler computes the next state of indexed entities from decoded
// event parameters and previously loaded state. Functions here do no I/O.
package reconciler

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/sokos-io/nft-indexer/internal/domain"
	"github.com/sokos-io/nft-indexer/internal/metadata"
	"github.com/sokos-io/nft-indexer/internal/store/schema"
)

// Collection builds the collection created by a factory deployment
func Collection(chainID uint64, p domain.CollectionDeployedParams) schema.Collection {
	return schema.Collection{
		ID:              p.TokenAddress,
		ContractAddress: p.TokenAddress,
		IsERC1155:       p.IsERC1155,
		Name:            p.Name,
		Symbol:          p.Symbol,
		URI:             p.URI,
		OwnerID:         p.Owner,
		ChainID:         chainID,
	}
}

// Mint describes a transfer from the zero address
type Mint struct {
	ChainID    uint64
	Collection string
	TokenID    string
	Owner      string
	Standard   domain.Standard
	// Supply is "1" for ERC721 and the transferred value for ERC1155
	Supply string
	At     schema.EventPosition
}

// IsMint reports whether a transfer from sender creates a token
func IsMint(from string) bool {
	return domain.IsZeroAddress(from)
}

// MintNft builds a new token from its resolved metadata
func MintNft(m Mint, md *metadata.Metadata) (schema.Nft, error) {
	if md == nil {
		md = metadata.Unknown()
	}

	attributes := md.Attributes
	if attributes == nil {
		attributes = []interface{}{}
	}
	encoded, err := json.Marshal(attributes)
	if err != nil {
		return schema.Nft{}, fmt.Errorf("failed to encode attributes: %w", err)
	}

	return schema.Nft{
		ID:           domain.NftID(m.Collection, m.TokenID),
		TokenID:      m.TokenID,
		OwnerID:      m.Owner,
		CollectionID: m.Collection,
		ChainID:      m.ChainID,
		Standard:     string(m.Standard),
		Supply:       m.Supply,
		Image:        md.Image,
		Name:         md.Name,
		Description:  md.Description,
		TokenURI:     md.TokenURL,
		Attributes:   datatypes.JSON(encoded),
		Categories:   md.Categories,
		IsPhygital:   md.Phygital(),
		OwnerAt:      m.At,
	}, nil
}

// TransferNft moves an existing token to a new owner. Only owner_id changes,
// and only when at is not older than the transfer that set the current owner.
func TransferNft(existing *schema.Nft, nftID string, to string, at schema.EventPosition) (schema.Nft, error) {
	if existing == nil {
		return schema.Nft{}, fmt.Errorf("%w: %w: transfer of %s", domain.ErrDataIntegrity, domain.ErrNftNotFound, nftID)
	}

	next := *existing
	if at.Before(existing.OwnerAt) {
		return next, nil
	}
	next.OwnerID = to
	next.OwnerAt = at
	return next, nil
}

// Transfer is one movement of a token quantity between two accounts
type Transfer struct {
	ChainID    uint64
	Collection string
	TokenID    string
	From       string
	To         string
	Quantity   string
	Timestamp  int64
}

// Balance builds the ledger record appended for a transfer
func Balance(t Transfer) schema.Balance {
	return schema.Balance{
		ID:           domain.BalanceID(t.To, t.From, t.Collection, t.TokenID, t.Quantity),
		CollectionID: t.Collection,
		NftID:        domain.NftID(t.Collection, t.TokenID),
		Quantity:     t.Quantity,
		ChainID:      t.ChainID,
		AccountID:    t.To,
		FromID:       t.From,
		Timestamp:    t.Timestamp,
	}
}

// Listing builds a newly opened, unfilled listing
func Listing(chainID uint64, p domain.ListingAddParams) (schema.Market, error) {
	for _, v := range []string{p.Quantity, p.PriceInUSD, p.Timestamp} {
		if _, err := domain.ParseUint256(v); err != nil {
			return schema.Market{}, err
		}
	}

	return schema.Market{
		ID:           p.ListingID,
		SellerID:     p.Seller,
		NftID:        domain.NftID(p.TokenAddress, p.TokenID),
		IsActive:     true,
		PriceInUSD:   p.PriceInUSD,
		Quantity:     p.Quantity,
		SoldQuantity: "0",
		Timestamp:    p.Timestamp,
		ChainID:      chainID,
	}, nil
}

// LinkListing points a token at the listing offering it, unless a later
// listing already did
func LinkListing(existing schema.Nft, marketID string, at schema.EventPosition) schema.Nft {
	next := existing
	if at.Before(existing.MarketAt) {
		return next
	}
	id := marketID
	next.MarketID = &id
	next.MarketAt = at
	return next
}

// Order builds the purchase record. method is domain.PAYMENT_METHOD_CARD or domain.PAYMENT_METHOD_CRYPTO.
func Order(chainID uint64, p domain.PurchaseParams, method string) (schema.Order, error) {
	for _, v := range []string{p.Quantity, p.PaidAmount, p.Timestamp} {
		if _, err := domain.ParseUint256(v); err != nil {
			return schema.Order{}, err
		}
	}

	return schema.Order{
		ID:        domain.OrderID(p.Seller, p.Buyer, p.ListingID),
		ChainID:   chainID,
		ToID:      p.Buyer,
		FromID:    p.Seller,
		NftID:     domain.NftID(p.TokenAddress, p.TokenID),
		MarketID:  p.ListingID,
		Amount:    p.PaidAmount,
		Currency:  p.Currency,
		Method:    method,
		Quantity:  p.Quantity,
		Timestamp: p.Timestamp,
	}, nil
}

// FillListing adds fill to the sold quantity. The listing stays active while
// sold < quantity; an overfill is recorded as is, without clamping.
func FillListing(market schema.Market, fill string) (schema.Market, error) {
	sold, err := domain.ParseUint256(market.SoldQuantity)
	if err != nil {
		return schema.Market{}, fmt.Errorf("%w: listing %s sold quantity: %w", domain.ErrDataIntegrity, market.ID, err)
	}
	quantity, err := domain.ParseUint256(market.Quantity)
	if err != nil {
		return schema.Market{}, fmt.Errorf("%w: listing %s quantity: %w", domain.ErrDataIntegrity, market.ID, err)
	}
	amount, err := domain.ParseUint256(fill)
	if err != nil {
		return schema.Market{}, err
	}

	newSold := sold.Add(sold, amount)

	next := market
	next.SoldQuantity = newSold.String()
	next.IsActive = newSold.Cmp(quantity) < 0
	return next, nil
}
