package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/sokos-io/nft-indexer/internal/adapter"
	"github.com/sokos-io/nft-indexer/internal/domain"
	"github.com/sokos-io/nft-indexer/internal/logger"
)

// tokenURIABI holds the ERC721 tokenURI accessor and the getTokenURI accessor exposed by our ERC1155 contracts
var tokenURIABI = mustParseABI(`[
	{"constant":true,"inputs":[{"name":"tokenId","type":"uint256"}],"name":"tokenURI","outputs":[{"name":"","type":"string"}],"payable":false,"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"tokenId","type":"uint256"}],"name":"getTokenURI","outputs":[{"name":"","type":"string"}],"payable":false,"stateMutability":"view","type":"function"}
]`)

func mustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(fmt.Sprintf("invalid ABI: %v", err))
	}
	return parsed
}

// EthereumClient is a read-only client bound to a single EVM chain
//
//go:generate mockgen -source=client.go -destination=../../mocks/ethereum_client.go -package=mocks -mock_names=EthereumClient=MockEthereumClient
type EthereumClient interface {
	// ChainID returns the chain the client is connected to
	ChainID() uint64

	// TokenURI calls tokenURI (ERC721) or getTokenURI (ERC1155) on the token contract
	TokenURI(ctx context.Context, standard domain.Standard, contractAddress string, tokenID string) (string, error)

	// FilterLogs returns the logs matching query. Ranges rejected by the node for
	// returning too many results are split until they succeed.
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)

	// FetchLatestBlock returns the latest block number
	FetchLatestBlock(ctx context.Context) (uint64, error)

	// FetchBlockTimestamp returns the unix timestamp of a block
	FetchBlockTimestamp(ctx context.Context, blockNumber uint64) (int64, error)

	// Close closes the connection
	Close()
}

type ethereumClient struct {
	chainID uint64
	client  adapter.EthClient
}

func NewClient(chainID uint64, client adapter.EthClient) EthereumClient {
	return &ethereumClient{chainID: chainID, client: client}
}

// Dial connects to rpcURL and verifies the node serves chainID
func Dial(ctx context.Context, dialer adapter.EthClientDialer, chainID uint64, rpcURL string) (EthereumClient, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := dialer.Dial(dialCtx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial chain %d: %w", chainID, err)
	}

	remoteID, err := client.ChainID(dialCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}
	if remoteID.Uint64() != chainID {
		client.Close()
		return nil, fmt.Errorf("rpc endpoint serves chain %d, expected %d", remoteID.Uint64(), chainID)
	}

	return NewClient(chainID, client), nil
}

func (c *ethereumClient) ChainID() uint64 {
	return c.chainID
}

func (c *ethereumClient) TokenURI(ctx context.Context, standard domain.Standard, contractAddress string, tokenID string) (string, error) {
	method := "tokenURI"
	if standard == domain.StandardERC1155 {
		method = "getTokenURI"
	}

	id, ok := new(big.Int).SetString(tokenID, 10)
	if !ok {
		return "", fmt.Errorf("invalid token id: %s", tokenID)
	}

	data, err := tokenURIABI.Pack(method, id)
	if err != nil {
		return "", fmt.Errorf("failed to pack data: %w", err)
	}

	contractAddr := common.HexToAddress(contractAddress)
	result, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &contractAddr,
		Data: data,
	}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to call %s: %w", method, err)
	}

	var uri string
	if err := tokenURIABI.UnpackIntoInterface(&uri, method, result); err != nil {
		return "", fmt.Errorf("failed to unpack result: %w", err)
	}

	return uri, nil
}

func (c *ethereumClient) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	if query.BlockHash != nil || query.FromBlock == nil || query.ToBlock == nil {
		return c.client.FilterLogs(ctx, query)
	}

	stepSize := new(big.Int).Sub(query.ToBlock, query.FromBlock).Uint64() + 1
	var allLogs []types.Log
	currentFrom := new(big.Int).Set(query.FromBlock)

	for currentFrom.Cmp(query.ToBlock) <= 0 {
		currentTo := new(big.Int).Add(currentFrom, new(big.Int).SetUint64(stepSize-1))
		if currentTo.Cmp(query.ToBlock) > 0 {
			currentTo.Set(query.ToBlock)
		}

		chunk := query
		chunk.FromBlock = new(big.Int).Set(currentFrom)
		chunk.ToBlock = currentTo

		logs, err := c.client.FilterLogs(ctx, chunk)
		if err == nil {
			allLogs = append(allLogs, logs...)
			currentFrom.SetUint64(currentTo.Uint64() + 1)
			continue
		}

		if !isTooManyResultsError(err) || stepSize == 1 {
			return nil, err
		}

		stepSize /= 2
		logger.Warn("Too many results, reducing step size",
			zap.Uint64("chain_id", c.chainID),
			zap.Uint64("newStepSize", stepSize),
			zap.Uint64("fromBlock", currentFrom.Uint64()),
			zap.Uint64("toBlock", currentTo.Uint64()))
	}

	return allLogs, nil
}

// isTooManyResultsError checks if the error is related to too many results
func isTooManyResultsError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "query returned more than 10000 results") ||
		strings.Contains(errStr, "query timeout exceeded") ||
		strings.Contains(errStr, "too many results") ||
		strings.Contains(errStr, "exceeded maximum") ||
		strings.Contains(errStr, "block range is too large")
}

func (c *ethereumClient) FetchLatestBlock(ctx context.Context) (uint64, error) {
	header, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block: %w", err)
	}
	return header.Number.Uint64(), nil
}

func (c *ethereumClient) FetchBlockTimestamp(ctx context.Context, blockNumber uint64) (int64, error) {
	header, err := c.client.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return 0, fmt.Errorf("failed to get block %d: %w", blockNumber, err)
	}
	return int64(header.Time), nil //nolint:gosec,G115
}

func (c *ethereumClient) Close() {
	c.client.Close()
}

// Clients holds one client per configured chain
type Clients map[uint64]EthereumClient

// Get returns the client for chainID
func (c Clients) Get(chainID uint64) (EthereumClient, error) {
	client, ok := c[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrUnsupportedChain, chainID)
	}
	return client, nil
}

// Close closes every client
func (c Clients) Close() {
	for _, client := range c {
		client.Close()
	}
}

// TokenURI reads the token URI through the client of chainID
func (c Clients) TokenURI(ctx context.Context, chainID uint64, standard domain.Standard, contractAddress string, tokenID string) (string, error) {
	client, err := c.Get(chainID)
	if err != nil {
		return "", err
	}
	return client.TokenURI(ctx, standard, contractAddress, tokenID)
}
