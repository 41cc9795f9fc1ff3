package httpserver

import (
	"errors"
	"net/http"

	"storefront/internal/domain"
	cartsvc "storefront/internal/service/cart"
	"github.com/gin-gonic/gin"
)

type addItemRequest struct {
	VariantID string `json:"variantId"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity" binding:"required"`
}

type changeQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type mergeRequest struct {
	Strategy       string `json:"strategy" binding:"required"`
	GuestSessionID string `json:"guestSessionId" binding:"required"`
}

func (h *handlers) getCart(c *gin.Context) {
	owner, ok := cartOwner(c)
	if !ok {
		respondError(c, h.logger, domain.ErrUnauthenticated)
		return
	}
	cart, err := h.deps.Carts.Active(c.Request.Context(), owner)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		respondError(c, h.logger, err)
		return
	}
	// A visitor without a cart simply sees an empty one.
	c.JSON(http.StatusOK, gin.H{"cart": toCartView(cart, "USD")})
}

func (h *handlers) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "quantity and variantId or sku required")
		return
	}
	if req.VariantID == "" && req.SKU == "" {
		badRequest(c, "variantId or sku required")
		return
	}
	if req.Quantity <= 0 {
		badRequest(c, "quantity must be positive")
		return
	}

	owner, ok := cartOwner(c)
	if !ok {
		respondError(c, h.logger, domain.ErrUnauthenticated)
		return
	}
	cart, err := h.deps.Carts.AddItem(c.Request.Context(), owner, cartsvc.AddItemInput{
		VariantID: req.VariantID,
		SKU:       req.SKU,
		Quantity:  req.Quantity,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": toCartView(cart, cart.Currency)})
}

func (h *handlers) changeQuantity(c *gin.Context) {
	var req changeQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "quantity required")
		return
	}
	if req.Quantity < 0 {
		badRequest(c, "quantity must not be negative")
		return
	}

	owner, ok := cartOwner(c)
	if !ok {
		respondError(c, h.logger, domain.ErrUnauthenticated)
		return
	}
	cart, err := h.deps.Carts.ChangeQuantity(c.Request.Context(), owner, c.Param("itemId"), req.Quantity)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": toCartView(cart, cart.Currency)})
}

func (h *handlers) removeItem(c *gin.Context) {
	owner, ok := cartOwner(c)
	if !ok {
		respondError(c, h.logger, domain.ErrUnauthenticated)
		return
	}
	cart, err := h.deps.Carts.RemoveItem(c.Request.Context(), owner, c.Param("itemId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": toCartView(cart, cart.Currency)})
}

// mergeCart folds the named guest session's cart into the authenticated
// principal's cart. The strategy is an explicit caller choice.
func (h *handlers) mergeCart(c *gin.Context) {
	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "strategy and guestSessionId required")
		return
	}
	strategy := domain.MergeStrategy(req.Strategy)
	if !strategy.Valid() {
		badRequest(c, "strategy must be one of merge, replace, keep_existing")
		return
	}

	p, ok := principalFrom(c)
	if !ok {
		respondError(c, h.logger, domain.ErrUnauthenticated)
		return
	}
	res, err := h.deps.Merge.MergeGuestCart(c.Request.Context(), p, req.GuestSessionID, strategy)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cart":      toCartView(res.Cart, res.Cart.Currency),
		"mergeInfo": res.Info,
	})
}
