package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"shop-service/internal/service"
)

type commentRequest struct {
	ProductID uint   `json:"product_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

// AddComment posts a product review.
func (h *Handler) AddComment(c echo.Context) error {
	var req commentRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}

	comment, err := h.comments.AddComment(c.Request().Context(), principal(c), service.CommentInput{
		ProductID: req.ProductID,
		Rating:    req.Rating,
		Text:      req.Comment,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, comment)
}

// ListComments returns the reviews of a product.
func (h *Handler) ListComments(c echo.Context) error {
	productID, err := parseID(c, "productId")
	if err != nil {
		return respondError(c, err)
	}

	comments, err := h.comments.ListComments(c.Request().Context(), productID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, comments)
}
