package metadata

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sokos-io/nft-indexer/internal/adapter"
	"github.com/sokos-io/nft-indexer/internal/domain"
	"github.com/sokos-io/nft-indexer/internal/ratelimit"
)

// consoleResponse is the paginated envelope returned by the marketplace console
type consoleResponse struct {
	TotalDocs int          `json:"totalDocs"`
	Docs      []consoleDoc `json:"docs"`
}

type consoleDoc struct {
	Supply   interface{} `json:"supply"`
	Metadata *struct {
		Image *struct {
			URL string `json:"url"`
		} `json:"image"`
		Title       string      `json:"title"`
		URI         string      `json:"uri"`
		Description interface{} `json:"description"`
		Attributes  interface{} `json:"attributes"`
		IsPhygital  interface{} `json:"isPhygital"`
	} `json:"metadata"`
	Token *struct {
		Standard   string `json:"standard"`
		Categories []struct {
			Slug string `json:"slug"`
		} `json:"categories"`
	} `json:"token"`
}

type consoleSource struct {
	httpClient adapter.HTTPClient
	json       adapter.JSON
	limiter    ratelimit.Limiter
	// baseURLs maps chain id to the console base URL
	baseURLs map[uint64]string
}

// NewConsoleSource creates the authoritative API tier. Chains without a base
// URL are skipped.
func NewConsoleSource(httpClient adapter.HTTPClient, json adapter.JSON, limiter ratelimit.Limiter, baseURLs map[uint64]string) Source {
	return &consoleSource{
		httpClient: httpClient,
		json:       json,
		limiter:    limiter,
		baseURLs:   baseURLs,
	}
}

func (s *consoleSource) Name() string {
	return "console"
}

// consoleQueryURL builds the nft lookup filtering on token id and lowercase contract address
func consoleQueryURL(baseURL string, ref TokenRef) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/api/nfts")
	if err != nil {
		return nil, fmt.Errorf("invalid console url %q: %w", baseURL, err)
	}

	q := url.Values{}
	q.Set("where[and][0][tokenId][equals]", ref.TokenID)
	q.Set("where[and][0][and][0][token.address][equals]", strings.ToLower(ref.TokenAddress))
	q.Set("depth", "5")
	u.RawQuery = q.Encode()

	return u, nil
}

func (s *consoleSource) Fetch(ctx context.Context, ref TokenRef) (*Metadata, error) {
	baseURL, ok := s.baseURLs[ref.ChainID]
	if !ok || baseURL == "" {
		return nil, fmt.Errorf("%w: no console url for chain %d", domain.ErrUnsupportedChain, ref.ChainID)
	}

	queryURL, err := consoleQueryURL(baseURL, ref)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Wait(ctx, queryURL.Host); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	body, err := s.httpClient.GetBytes(ctx, queryURL.String())
	if err != nil {
		return nil, fmt.Errorf("console request failed: %w", err)
	}

	var resp consoleResponse
	if err := s.json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode console response: %w", err)
	}

	if resp.TotalDocs == 0 || len(resp.Docs) == 0 {
		return nil, fmt.Errorf("%w: console has no record for %s", domain.ErrMetadataNotFound, ref)
	}

	doc := resp.Docs[0]
	if doc.Metadata == nil {
		return nil, fmt.Errorf("%w: console record for %s has no metadata", domain.ErrMetadataNotFound, ref)
	}

	m := &Metadata{
		Name:        doc.Metadata.Title,
		TokenURL:    doc.Metadata.URI,
		Description: stringify(doc.Metadata.Description),
		Attributes:  attributeList(doc.Metadata.Attributes),
		IsPhygital:  phygitalFlag(doc.Metadata.IsPhygital),
		Supply:      stringify(doc.Supply),
	}
	if doc.Metadata.Image != nil {
		m.Image = doc.Metadata.Image.URL
	}
	if doc.Token != nil {
		m.Standard = doc.Token.Standard

		slugs := make([]string, 0, len(doc.Token.Categories))
		for _, c := range doc.Token.Categories {
			slugs = append(slugs, c.Slug)
		}
		m.Categories = strings.Join(slugs, ",")
	}

	return m, nil
}
