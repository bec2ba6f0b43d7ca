package metadata

import (
	"context"
	"fmt"

	"github.com/sokos-io/nft-indexer/internal/domain"
	"github.com/sokos-io/nft-indexer/internal/uri"
)

// TokenURIReader reads the metadata URI stored on a token contract
//
//go:generate mockgen -source=onchain.go -destination=../mocks/token_uri_reader.go -package=mocks -mock_names=TokenURIReader=MockTokenURIReader
type TokenURIReader interface {
	TokenURI(ctx context.Context, chainID uint64, standard domain.Standard, contractAddress string, tokenID string) (string, error)
}

type onChainSource struct {
	reader  TokenURIReader
	fetcher uri.Fetcher
}

// NewOnChainSource creates the tier that reads the token URI from the
// contract and fetches the document it points to
func NewOnChainSource(reader TokenURIReader, fetcher uri.Fetcher) Source {
	return &onChainSource{
		reader:  reader,
		fetcher: fetcher,
	}
}

func (s *onChainSource) Name() string {
	return "onchain"
}

// hasName accepts documents carrying a non-empty name
func hasName(data map[string]interface{}) bool {
	name, ok := data["name"].(string)
	return ok && name != ""
}

func (s *onChainSource) Fetch(ctx context.Context, ref TokenRef) (*Metadata, error) {
	tokenURI, err := s.reader.TokenURI(ctx, ref.ChainID, ref.Standard, ref.TokenAddress, ref.TokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to read token uri: %w", err)
	}
	if tokenURI == "" {
		return nil, fmt.Errorf("%w: empty token uri for %s", domain.ErrMetadataNotFound, ref)
	}

	tokenURI = uri.ExpandTokenID(tokenURI, ref.TokenID)
	doc, err := s.fetcher.FetchJSON(ctx, tokenURI, hasName)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", tokenURI, err)
	}

	image := stringify(doc.Data["image"])
	if doc.Gateway != "" {
		image = uri.ToGateway(image, doc.Gateway)
	}

	m := &Metadata{
		Image:       image,
		Name:        stringify(doc.Data["name"]),
		TokenURL:    tokenURI,
		Description: stringify(doc.Data["description"]),
		Attributes:  attributeList(doc.Data["attributes"]),
		IsPhygital:  phygitalFlag(doc.Data["isPhygital"]),
		Standard:    string(ref.Standard),
		Supply:      domain.UNKNOWN,
		Categories:  "",
	}
	if ref.Standard == domain.StandardERC721 {
		m.Supply = "1"
	}
	if supply := stringify(doc.Data["supply"]); supply != "" {
		m.Supply = supply
	}

	return m, nil
}
