package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"shop-service/internal/service"
)

type categoryRequest struct {
	Name     string `json:"name"`
	ParentID *uint  `json:"parent_id"`
}

// ListCategories returns a page of categories.
func (h *Handler) ListCategories(c echo.Context) error {
	page := pageFrom(c)
	categories, total, err := h.catalog.ListCategories(c.Request().Context(), page)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newListResponse(categories, total, page))
}

// GetCategory returns one category.
func (h *Handler) GetCategory(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	category, err := h.catalog.GetCategory(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, category)
}

// CreateCategory adds a category.
func (h *Handler) CreateCategory(c echo.Context) error {
	var req categoryRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}

	category, err := h.catalog.CreateCategory(c.Request().Context(), service.CategoryInput{Name: req.Name, ParentID: req.ParentID})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, category)
}

// UpdateCategory renames or moves a category.
func (h *Handler) UpdateCategory(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req categoryRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}

	category, err := h.catalog.UpdateCategory(c.Request().Context(), id, service.CategoryInput{Name: req.Name, ParentID: req.ParentID})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, category)
}

// DeleteCategory removes a category.
func (h *Handler) DeleteCategory(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.catalog.DeleteCategory(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Category deleted successfully"})
}
