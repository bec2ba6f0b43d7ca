package dispatcher

import (
	"context"

	"github.com/sokos-io/nft-indexer/internal/domain"
	"github.com/sokos-io/nft-indexer/internal/store"
	"github.com/sokos-io/nft-indexer/internal/store/schema"
)

// Handler processes one event type in two phases. Load reads every entity
// Handle needs; Handle computes the changes from the loaded snapshot only.
//
//go:generate mockgen -source=handler.go -destination=../mocks/handler.go -package=mocks -mock_names=Handler=MockHandler
type Handler interface {
	// Keys returns the entity keys whose writes must follow event order
	Keys(ev *domain.Event) ([]string, error)

	// Load fetches existing state. Missing entities are left nil, not reported as errors.
	Load(ctx context.Context, ev *domain.Event, reader store.Reader) (*ReadSet, error)

	// Handle returns the upserts to commit for the event
	Handle(ctx context.Context, ev *domain.Event, rs *ReadSet) (*store.ChangeSet, error)
}

// ReadSet is the snapshot produced by Load. Handlers must not mutate it.
type ReadSet struct {
	// Params holds the decoded event parameters
	Params interface{}

	// Accounts maps each loaded address to its row, nil when absent
	Accounts map[string]*schema.Account
	Nft      *schema.Nft
	Market   *schema.Market
}

// HasAccount reports whether the account was found during Load
func (rs *ReadSet) HasAccount(id string) bool {
	return rs.Accounts[id] != nil
}

func loadAccounts(ctx context.Context, reader store.Reader, ids ...string) (map[string]*schema.Account, error) {
	accounts := make(map[string]*schema.Account, len(ids))
	for _, id := range ids {
		if _, ok := accounts[id]; ok {
			continue
		}
		account, err := reader.GetAccount(ctx, id)
		if err != nil {
			return nil, err
		}
		accounts[id] = account
	}
	return accounts, nil
}

// ensureAccounts adds the accounts the snapshot did not contain
func ensureAccounts(changes *store.ChangeSet, rs *ReadSet, ids ...string) {
	for _, id := range ids {
		if !rs.HasAccount(id) {
			changes.AddAccount(id)
		}
	}
}

func collectionKey(id string) string { return "collection:" + id }

func nftKey(id string) string { return "nft:" + id }

func marketKey(id string) string { return "market:" + id }

func orderKey(id string) string { return "order:" + id }
