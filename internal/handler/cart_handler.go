package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"shop-service/internal/apperr"
)

type cartItemRequest struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

// GetCart returns the caller's cart.
func (h *Handler) GetCart(c echo.Context) error {
	cart, err := h.carts.GetCart(c.Request().Context(), principal(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, cart)
}

// AddCartItem adds a product to the cart and returns the cart.
func (h *Handler) AddCartItem(c echo.Context) error {
	req, err := bindCartItem(c)
	if err != nil {
		return respondError(c, err)
	}

	p := principal(c)
	if err := h.carts.AddItem(c.Request().Context(), p, req.ProductID, req.Quantity); err != nil {
		return respondError(c, err)
	}
	cart, err := h.carts.GetCart(c.Request().Context(), p)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, cart)
}

// UpdateCartItem sets the quantity of a cart line and returns the cart.
func (h *Handler) UpdateCartItem(c echo.Context) error {
	req, err := bindCartItem(c)
	if err != nil {
		return respondError(c, err)
	}

	p := principal(c)
	if err := h.carts.UpdateItem(c.Request().Context(), p, req.ProductID, req.Quantity); err != nil {
		return respondError(c, err)
	}
	cart, err := h.carts.GetCart(c.Request().Context(), p)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, cart)
}

// RemoveCartItem deletes a product from the cart.
func (h *Handler) RemoveCartItem(c echo.Context) error {
	productID, err := parseID(c, "productId")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.carts.RemoveItem(c.Request().Context(), principal(c), productID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Item removed from cart"})
}

// ClearCart empties the caller's cart.
func (h *Handler) ClearCart(c echo.Context) error {
	if err := h.carts.Clear(c.Request().Context(), principal(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Cart cleared"})
}

func bindCartItem(c echo.Context) (cartItemRequest, error) {
	var req cartItemRequest
	if err := bind(c, &req); err != nil {
		return req, err
	}
	if req.ProductID == 0 {
		return req, apperr.Validation("product_id is required")
	}
	return req, nil
}
