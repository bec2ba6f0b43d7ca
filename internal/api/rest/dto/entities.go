package dto

import (
	"encoding/json"

	"github.com/sokos-io/nft-indexer/internal/store/schema"
)

// CollectionResponse is a deployed token contract
type CollectionResponse struct {
	ID              string `json:"id"`
	ChainID         uint64 `json:"chain_id"`
	ContractAddress string `json:"contract_address"`
	IsERC1155       bool   `json:"is_erc1155"`
	Name            string `json:"name"`
	Symbol          string `json:"symbol"`
	URI             string `json:"uri"`
	Owner           string `json:"owner"`
}

// NftResponse is a token with its resolved metadata
type NftResponse struct {
	ID           string          `json:"id"`
	ChainID      uint64          `json:"chain_id"`
	CollectionID string          `json:"collection_id"`
	TokenID      string          `json:"token_id"`
	Owner        string          `json:"owner"`
	Standard     string          `json:"standard"`
	Supply       string          `json:"supply"`
	Image        string          `json:"image"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	TokenURI     string          `json:"token_uri"`
	Attributes   json.RawMessage `json:"attributes,omitempty"`
	Categories   string          `json:"categories"`
	IsPhygital   bool            `json:"is_phygital"`
	MarketID     *string         `json:"market_id"`
}

// BalanceResponse is one transfer ledger record
type BalanceResponse struct {
	ID           string `json:"id"`
	ChainID      uint64 `json:"chain_id"`
	CollectionID string `json:"collection_id"`
	NftID        string `json:"nft_id"`
	Quantity     string `json:"quantity"`
	From         string `json:"from"`
	To           string `json:"to"`
	Timestamp    int64  `json:"timestamp"`
}

// MarketResponse is a listing
type MarketResponse struct {
	ID           string `json:"id"`
	ChainID      uint64 `json:"chain_id"`
	Seller       string `json:"seller"`
	NftID        string `json:"nft_id"`
	IsActive     bool   `json:"is_active"`
	PriceInUSD   string `json:"price_in_usd"`
	Quantity     string `json:"quantity"`
	SoldQuantity string `json:"sold_quantity"`
	Timestamp    string `json:"timestamp"`
}

// OrderResponse is a purchase against a listing
type OrderResponse struct {
	ID        string `json:"id"`
	ChainID   uint64 `json:"chain_id"`
	MarketID  string `json:"market_id"`
	NftID     string `json:"nft_id"`
	Seller    string `json:"seller"`
	Buyer     string `json:"buyer"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Method    string `json:"method"`
	Quantity  string `json:"quantity"`
	Timestamp string `json:"timestamp"`
}

// ListResponse wraps a page of items
type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func MapCollection(c *schema.Collection) *CollectionResponse {
	return &CollectionResponse{
		ID:              c.ID,
		ChainID:         c.ChainID,
		ContractAddress: c.ContractAddress,
		IsERC1155:       c.IsERC1155,
		Name:            c.Name,
		Symbol:          c.Symbol,
		URI:             c.URI,
		Owner:           c.OwnerID,
	}
}

func MapNft(n *schema.Nft) *NftResponse {
	resp := &NftResponse{
		ID:           n.ID,
		ChainID:      n.ChainID,
		CollectionID: n.CollectionID,
		TokenID:      n.TokenID,
		Owner:        n.OwnerID,
		Standard:     n.Standard,
		Supply:       n.Supply,
		Image:        n.Image,
		Name:         n.Name,
		Description:  n.Description,
		TokenURI:     n.TokenURI,
		Categories:   n.Categories,
		IsPhygital:   n.IsPhygital,
		MarketID:     n.MarketID,
	}
	if len(n.Attributes) > 0 {
		resp.Attributes = json.RawMessage(n.Attributes)
	}
	return resp
}

func MapBalance(b schema.Balance) BalanceResponse {
	return BalanceResponse{
		ID:           b.ID,
		ChainID:      b.ChainID,
		CollectionID: b.CollectionID,
		NftID:        b.NftID,
		Quantity:     b.Quantity,
		From:         b.FromID,
		To:           b.AccountID,
		Timestamp:    b.Timestamp,
	}
}

func MapMarket(m *schema.Market) *MarketResponse {
	return &MarketResponse{
		ID:           m.ID,
		ChainID:      m.ChainID,
		Seller:       m.SellerID,
		NftID:        m.NftID,
		IsActive:     m.IsActive,
		PriceInUSD:   m.PriceInUSD,
		Quantity:     m.Quantity,
		SoldQuantity: m.SoldQuantity,
		Timestamp:    m.Timestamp,
	}
}

func MapOrder(o schema.Order) OrderResponse {
	return OrderResponse{
		ID:        o.ID,
		ChainID:   o.ChainID,
		MarketID:  o.MarketID,
		NftID:     o.NftID,
		Seller:    o.FromID,
		Buyer:     o.ToID,
		Amount:    o.Amount,
		Currency:  o.Currency,
		Method:    o.Method,
		Quantity:  o.Quantity,
		Timestamp: o.Timestamp,
	}
}

// MapList converts a page of rows
func MapList[S any, T any](rows []S, limit, offset int, mapFn func(S) T) ListResponse[T] {
	items := make([]T, 0, len(rows))
	for _, r := range rows {
		items = append(items, mapFn(r))
	}
	return ListResponse[T]{Items: items, Limit: limit, Offset: offset}
}
