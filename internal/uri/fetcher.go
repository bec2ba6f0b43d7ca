package uri

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sokos-io/nft-indexer/internal/adapter"
	"github.com/sokos-io/nft-indexer/internal/logger"
)

// ErrNoDocument is returned when no source served an acceptable document
var ErrNoDocument = errors.New("no acceptable document")

// Config holds configuration for the document fetcher
type Config struct {
	// IPFSGateways is the ordered list of gateways, highest priority first
	IPFSGateways []string
}

// Document is a JSON document and where it was served from
type Document struct {
	Data map[string]interface{}
	// URL is the address the document was fetched from, empty for data: URIs
	URL string
	// Gateway is the IPFS gateway that served the document, empty otherwise
	Gateway string
}

// AcceptFunc decides whether a fetched document is usable
type AcceptFunc func(data map[string]interface{}) bool

// Fetcher fetches JSON documents referenced by token URIs
//
//go:generate mockgen -source=fetcher.go -destination=../mocks/uri_fetcher.go -package=mocks -mock_names=Fetcher=MockURIFetcher
type Fetcher interface {
	// FetchJSON resolves rawURI to a JSON object. IPFS references are probed
	// gateway by gateway in priority order until accept approves a document.
	FetchJSON(ctx context.Context, rawURI string, accept AcceptFunc) (*Document, error)
}

type fetcher struct {
	httpClient adapter.HTTPClient
	json       adapter.JSON
	config     Config
}

func NewFetcher(httpClient adapter.HTTPClient, json adapter.JSON, config Config) Fetcher {
	return &fetcher{
		httpClient: httpClient,
		json:       json,
		config:     config,
	}
}

func (f *fetcher) FetchJSON(ctx context.Context, uri string, accept AcceptFunc) (*Document, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, fmt.Errorf("%w: empty uri", ErrNoDocument)
	}

	if strings.HasPrefix(uri, "data:") {
		return f.fromDataURI(uri, accept)
	}

	if path, ok := IPFSPath(uri); ok {
		return f.fromIPFS(ctx, path, accept)
	}

	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		data, err := f.get(ctx, uri)
		if err != nil {
			return nil, err
		}
		if !accept(data) {
			return nil, fmt.Errorf("%w: %s", ErrNoDocument, uri)
		}
		return &Document{Data: data, URL: uri}, nil
	}

	return nil, fmt.Errorf("unsupported URI scheme: %s", uri)
}

// fromIPFS tries each gateway in order; a failing or rejected gateway moves on to the next one
func (f *fetcher) fromIPFS(ctx context.Context, path string, accept AcceptFunc) (*Document, error) {
	if len(f.config.IPFSGateways) == 0 {
		return nil, fmt.Errorf("no IPFS gateways configured")
	}

	for _, gateway := range f.config.IPFSGateways {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		url := GatewayURL(gateway, path)
		data, err := f.get(ctx, url)
		if err != nil {
			logger.WarnCtx(ctx, "IPFS gateway failed", zap.String("url", url), zap.Error(err))
			continue
		}
		if !accept(data) {
			logger.WarnCtx(ctx, "IPFS gateway returned an unusable document", zap.String("url", url))
			continue
		}

		return &Document{Data: data, URL: url, Gateway: gateway}, nil
	}

	return nil, fmt.Errorf("%w: ipfs path %s on %d gateways", ErrNoDocument, path, len(f.config.IPFSGateways))
}

func (f *fetcher) fromDataURI(uri string, accept AcceptFunc) (*Document, error) {
	raw, err := DecodeDataURI(uri)
	if err != nil {
		return nil, err
	}

	var data map[string]interface{}
	if err := f.json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse data URI JSON: %w", err)
	}
	if !accept(data) {
		return nil, fmt.Errorf("%w: data URI", ErrNoDocument)
	}

	return &Document{Data: data}, nil
}

func (f *fetcher) get(ctx context.Context, url string) (map[string]interface{}, error) {
	body, err := f.httpClient.GetBytes(ctx, url)
	if err != nil {
		return nil, err
	}

	var data map[string]interface{}
	if err := f.json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON from %s: %w", url, err)
	}

	return data, nil
}
