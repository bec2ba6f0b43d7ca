package rest

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sokos-io/nft-indexer/internal/api/rest/dto"
	"github.com/sokos-io/nft-indexer/internal/domain"
	"github.com/sokos-io/nft-indexer/internal/store"
)

// Handler defines the interface for REST API handlers
type Handler interface {
	// GetCollection retrieves a collection by contract address
	// GET /api/v1/collections/:id
	GetCollection(c *gin.Context)

	// GetNft retrieves a token by "<contract>-<tokenId>"
	// GET /api/v1/nfts/:id
	GetNft(c *gin.Context)

	// ListAccountBalances lists the transfers received by an account, newest first
	// GET /api/v1/accounts/:id/balances?limit=<limit>&offset=<offset>
	ListAccountBalances(c *gin.Context)

	// GetMarket retrieves a listing
	// GET /api/v1/markets/:id
	GetMarket(c *gin.Context)

	// ListMarketOrders lists the purchases filling a listing
	// GET /api/v1/markets/:id/orders?limit=<limit>&offset=<offset>
	ListMarketOrders(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

type handler struct {
	store store.Store
}

// NewHandler creates a new REST API handler reading from the entity store
func NewHandler(st store.Store) Handler {
	return &handler{store: st}
}

func (h *handler) GetCollection(c *gin.Context) {
	id := domain.NormalizeAddress(c.Param("id"))

	collection, err := h.store.GetCollection(c.Request.Context(), id)
	if err != nil {
		respondDatabaseError(c, err, "Failed to get collection", zap.String("id", id))
		return
	}
	if collection == nil {
		respondNotFound(c, "Collection not found")
		return
	}

	c.JSON(http.StatusOK, dto.MapCollection(collection))
}

func (h *handler) GetNft(c *gin.Context) {
	id, ok := normalizeNftID(c.Param("id"))
	if !ok {
		respondBadRequest(c, "Invalid nft id", "expected <contract>-<tokenId>")
		return
	}

	nft, err := h.store.GetNft(c.Request.Context(), id)
	if err != nil {
		respondDatabaseError(c, err, "Failed to get nft", zap.String("id", id))
		return
	}
	if nft == nil {
		respondNotFound(c, "Nft not found")
		return
	}

	c.JSON(http.StatusOK, dto.MapNft(nft))
}

func (h *handler) ListAccountBalances(c *gin.Context) {
	id := domain.NormalizeAddress(c.Param("id"))

	page, err := ParsePageQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}
	if err := page.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	balances, err := h.store.ListBalancesByAccount(c.Request.Context(), id, page.Limit, page.Offset)
	if err != nil {
		respondDatabaseError(c, err, "Failed to list balances", zap.String("account_id", id))
		return
	}

	c.JSON(http.StatusOK, dto.MapList(balances, page.Limit, page.Offset, dto.MapBalance))
}

func (h *handler) GetMarket(c *gin.Context) {
	id := c.Param("id")

	market, err := h.store.GetMarket(c.Request.Context(), id)
	if err != nil {
		respondDatabaseError(c, err, "Failed to get market", zap.String("id", id))
		return
	}
	if market == nil {
		respondNotFound(c, "Market not found")
		return
	}

	c.JSON(http.StatusOK, dto.MapMarket(market))
}

func (h *handler) ListMarketOrders(c *gin.Context) {
	id := c.Param("id")

	page, err := ParsePageQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}
	if err := page.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	orders, err := h.store.ListOrdersByMarket(c.Request.Context(), id, page.Limit, page.Offset)
	if err != nil {
		respondDatabaseError(c, err, "Failed to list orders", zap.String("market_id", id))
		return
	}

	c.JSON(http.StatusOK, dto.MapList(orders, page.Limit, page.Offset, dto.MapOrder))
}

func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "nft-indexer-api",
	})
}

// normalizeNftID checksums the contract part of "<contract>-<tokenId>"
func normalizeNftID(id string) (string, bool) {
	contract, tokenID, ok := strings.Cut(id, "-")
	if !ok || contract == "" || tokenID == "" {
		return "", false
	}
	if _, err := domain.ParseUint256(tokenID); err != nil {
		return "", false
	}
	return domain.NftID(domain.NormalizeAddress(contract), tokenID), true
}
