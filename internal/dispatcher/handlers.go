package dispatcher

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sokos-io/nft-indexer/internal/domain"
	"github.com/sokos-io/nft-indexer/internal/logger"
	"github.com/sokos-io/nft-indexer/internal/metadata"
	"github.com/sokos-io/nft-indexer/internal/reconciler"
	"github.com/sokos-io/nft-indexer/internal/registry"
	"github.com/sokos-io/nft-indexer/internal/store"
	"github.com/sokos-io/nft-indexer/internal/store/schema"
)

// DefaultHandlers returns the handler of every indexed event type
func DefaultHandlers(resolver metadata.Resolver, registrar registry.Registrar) map[domain.EventType]Handler {
	return map[domain.EventType]Handler{
		domain.EventTypeCollectionDeployed: &collectionDeployedHandler{registrar: registrar},
		domain.EventTypeTransfer:           &transferHandler{resolver: resolver, standard: domain.StandardERC721},
		domain.EventTypeTransferSingle:     &transferHandler{resolver: resolver, standard: domain.StandardERC1155},
		domain.EventTypeListingAdd:         &listingAddHandler{},
		domain.EventTypeBuyWithFiat:        &purchaseHandler{method: domain.PAYMENT_METHOD_CARD},
		domain.EventTypeBuy:                &purchaseHandler{method: domain.PAYMENT_METHOD_CRYPTO},
	}
}

func positionOf(ev *domain.Event) schema.EventPosition {
	return schema.EventPosition{BlockNumber: ev.BlockNumber, LogIndex: ev.LogIndex}
}

// collectionDeployedHandler registers the new token contract and records the collection
type collectionDeployedHandler struct {
	registrar registry.Registrar
}

func (h *collectionDeployedHandler) Keys(ev *domain.Event) ([]string, error) {
	var p domain.CollectionDeployedParams
	if err := ev.Decode(&p); err != nil {
		return nil, err
	}
	return []string{collectionKey(p.TokenAddress)}, nil
}

func (h *collectionDeployedHandler) Load(ctx context.Context, ev *domain.Event, _ store.Reader) (*ReadSet, error) {
	var p domain.CollectionDeployedParams
	if err := ev.Decode(&p); err != nil {
		return nil, err
	}

	var err error
	if p.IsERC1155 {
		err = h.registrar.RegisterERC1155(ctx, ev.ChainID, p.TokenAddress, ev.BlockNumber)
	} else {
		err = h.registrar.RegisterERC721(ctx, ev.ChainID, p.TokenAddress, ev.BlockNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to register collection %s: %w", p.TokenAddress, err)
	}

	return &ReadSet{Params: p}, nil
}

func (h *collectionDeployedHandler) Handle(_ context.Context, ev *domain.Event, rs *ReadSet) (*store.ChangeSet, error) {
	p := rs.Params.(domain.CollectionDeployedParams)
	return &store.ChangeSet{
		Collections: []schema.Collection{reconciler.Collection(ev.ChainID, p)},
	}, nil
}

// transfer is the common shape of ERC721 Transfer and ERC1155 TransferSingle
type transfer struct {
	From     string
	To       string
	TokenID  string
	Quantity string
}

// transferHandler mints or moves a token and appends a balance record
type transferHandler struct {
	resolver metadata.Resolver
	standard domain.Standard
}

func (h *transferHandler) decode(ev *domain.Event) (transfer, error) {
	if h.standard == domain.StandardERC1155 {
		var p domain.TransferSingleParams
		if err := ev.Decode(&p); err != nil {
			return transfer{}, err
		}
		if _, err := domain.ParseUint256(p.Value); err != nil {
			return transfer{}, err
		}
		return transfer{From: p.From, To: p.To, TokenID: p.ID, Quantity: p.Value}, nil
	}

	var p domain.TransferParams
	if err := ev.Decode(&p); err != nil {
		return transfer{}, err
	}
	return transfer{From: p.From, To: p.To, TokenID: p.TokenID, Quantity: "1"}, nil
}

func (h *transferHandler) Keys(ev *domain.Event) ([]string, error) {
	t, err := h.decode(ev)
	if err != nil {
		return nil, err
	}
	return []string{nftKey(domain.NftID(ev.SrcAddress, t.TokenID))}, nil
}

func (h *transferHandler) Load(ctx context.Context, ev *domain.Event, reader store.Reader) (*ReadSet, error) {
	t, err := h.decode(ev)
	if err != nil {
		return nil, err
	}

	accounts, err := loadAccounts(ctx, reader, t.From, t.To)
	if err != nil {
		return nil, err
	}

	nft, err := reader.GetNft(ctx, domain.NftID(ev.SrcAddress, t.TokenID))
	if err != nil {
		return nil, err
	}

	return &ReadSet{Params: t, Accounts: accounts, Nft: nft}, nil
}

func (h *transferHandler) Handle(ctx context.Context, ev *domain.Event, rs *ReadSet) (*store.ChangeSet, error) {
	t := rs.Params.(transfer)
	nftID := domain.NftID(ev.SrcAddress, t.TokenID)

	changes := &store.ChangeSet{}
	ensureAccounts(changes, rs, t.From, t.To)

	switch {
	case rs.Nft != nil:
		at := positionOf(ev)
		nft, err := reconciler.TransferNft(rs.Nft, nftID, t.To, at)
		if err != nil {
			return nil, err
		}
		if at.Before(rs.Nft.OwnerAt) {
			logger.WarnCtx(ctx, "Stale transfer keeps the newer owner",
				zap.String("nft_id", nftID),
				zap.String("event_id", ev.ID()),
				zap.Uint64("owner_block", rs.Nft.OwnerAt.BlockNumber))
		}
		changes.Nfts = append(changes.Nfts, nft)

	case reconciler.IsMint(t.From):
		md := h.resolver.Resolve(ctx, metadata.TokenRef{
			Standard:     h.standard,
			ChainID:      ev.ChainID,
			TokenAddress: ev.SrcAddress,
			TokenID:      t.TokenID,
		})

		supply := "1"
		if h.standard == domain.StandardERC1155 {
			supply = t.Quantity
		}
		nft, err := reconciler.MintNft(reconciler.Mint{
			ChainID:    ev.ChainID,
			Collection: ev.SrcAddress,
			TokenID:    t.TokenID,
			Owner:      t.To,
			Standard:   h.standard,
			Supply:     supply,
			At:         positionOf(ev),
		}, md)
		if err != nil {
			return nil, err
		}
		changes.Nfts = append(changes.Nfts, nft)

	default:
		_, err := reconciler.TransferNft(nil, nftID, t.To, positionOf(ev))
		return nil, err
	}

	changes.Balances = append(changes.Balances, reconciler.Balance(reconciler.Transfer{
		ChainID:    ev.ChainID,
		Collection: ev.SrcAddress,
		TokenID:    t.TokenID,
		From:       t.From,
		To:         t.To,
		Quantity:   t.Quantity,
		Timestamp:  ev.BlockTimestamp,
	}))

	return changes, nil
}

// listingAddHandler opens a listing and links it from the listed token
type listingAddHandler struct{}

func (h *listingAddHandler) Keys(ev *domain.Event) ([]string, error) {
	var p domain.ListingAddParams
	if err := ev.Decode(&p); err != nil {
		return nil, err
	}
	return []string{marketKey(p.ListingID), nftKey(domain.NftID(p.TokenAddress, p.TokenID))}, nil
}

func (h *listingAddHandler) Load(ctx context.Context, ev *domain.Event, reader store.Reader) (*ReadSet, error) {
	var p domain.ListingAddParams
	if err := ev.Decode(&p); err != nil {
		return nil, err
	}

	accounts, err := loadAccounts(ctx, reader, p.Seller)
	if err != nil {
		return nil, err
	}

	nft, err := reader.GetNft(ctx, domain.NftID(p.TokenAddress, p.TokenID))
	if err != nil {
		return nil, err
	}

	return &ReadSet{Params: p, Accounts: accounts, Nft: nft}, nil
}

func (h *listingAddHandler) Handle(ctx context.Context, ev *domain.Event, rs *ReadSet) (*store.ChangeSet, error) {
	p := rs.Params.(domain.ListingAddParams)

	market, err := reconciler.Listing(ev.ChainID, p)
	if err != nil {
		return nil, err
	}

	changes := &store.ChangeSet{Markets: []schema.Market{market}}
	ensureAccounts(changes, rs, p.Seller)

	if rs.Nft != nil {
		changes.Nfts = append(changes.Nfts, reconciler.LinkListing(*rs.Nft, market.ID, positionOf(ev)))
	} else {
		logger.WarnCtx(ctx, "Listing references a token that is not indexed",
			zap.String("listing_id", p.ListingID),
			zap.String("nft_id", market.NftID))
	}

	return changes, nil
}

// purchaseHandler records an order and accumulates the fill on its listing
type purchaseHandler struct {
	method string
}

func (h *purchaseHandler) Keys(ev *domain.Event) ([]string, error) {
	var p domain.PurchaseParams
	if err := ev.Decode(&p); err != nil {
		return nil, err
	}
	return []string{marketKey(p.ListingID), orderKey(domain.OrderID(p.Seller, p.Buyer, p.ListingID))}, nil
}

func (h *purchaseHandler) Load(ctx context.Context, ev *domain.Event, reader store.Reader) (*ReadSet, error) {
	var p domain.PurchaseParams
	if err := ev.Decode(&p); err != nil {
		return nil, err
	}

	accounts, err := loadAccounts(ctx, reader, p.Buyer, p.Seller)
	if err != nil {
		return nil, err
	}

	market, err := reader.GetMarket(ctx, p.ListingID)
	if err != nil {
		return nil, err
	}

	return &ReadSet{Params: p, Accounts: accounts, Market: market}, nil
}

func (h *purchaseHandler) Handle(ctx context.Context, ev *domain.Event, rs *ReadSet) (*store.ChangeSet, error) {
	p := rs.Params.(domain.PurchaseParams)

	order, err := reconciler.Order(ev.ChainID, p, h.method)
	if err != nil {
		return nil, err
	}

	changes := &store.ChangeSet{Orders: []schema.Order{order}}
	ensureAccounts(changes, rs, p.Buyer, p.Seller)

	if rs.Market == nil {
		logger.WarnCtx(ctx, "Order for a listing that is not indexed", zap.String("listing_id", p.ListingID))
		return changes, nil
	}

	market, err := reconciler.FillListing(*rs.Market, p.Quantity)
	if err != nil {
		return nil, err
	}
	changes.Markets = append(changes.Markets, market)

	return changes, nil
}
