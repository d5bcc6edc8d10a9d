package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"shop-service/internal/apperr"
	"shop-service/internal/service"
	"shop-service/internal/store"
)

type productRequest struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	CategoryID  uint            `json:"category_id"`
	Description string          `json:"description"`
	Stock       int             `json:"stock"`
	ImageURL    string          `json:"image_url"`
}

type productPatchRequest struct {
	Name        *string          `json:"name"`
	Price       *decimal.Decimal `json:"price"`
	CategoryID  *uint            `json:"category_id"`
	Description *string          `json:"description"`
	Stock       *int             `json:"stock"`
	ImageURL    *string          `json:"image_url"`
}

// ListProducts returns a filtered page of products.
func (h *Handler) ListProducts(c echo.Context) error {
	filter, err := productFilterFrom(c)
	if err != nil {
		return respondError(c, err)
	}

	products, total, err := h.catalog.ListProducts(c.Request().Context(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newListResponse(products, total, filter.Page))
}

// GetProduct returns one product.
func (h *Handler) GetProduct(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	product, err := h.catalog.GetProduct(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, product)
}

// CreateProduct adds a product.
func (h *Handler) CreateProduct(c echo.Context) error {
	var req productRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}

	product, err := h.catalog.CreateProduct(c.Request().Context(), service.ProductInput{
		Name:        req.Name,
		Price:       req.Price,
		CategoryID:  req.CategoryID,
		Description: req.Description,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, product)
}

// UpdateProduct applies a partial update to a product.
func (h *Handler) UpdateProduct(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req productPatchRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}

	product, err := h.catalog.UpdateProduct(c.Request().Context(), id, service.ProductPatch{
		Name:        req.Name,
		Price:       req.Price,
		CategoryID:  req.CategoryID,
		Description: req.Description,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, product)
}

// DeleteProduct removes a product.
func (h *Handler) DeleteProduct(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.catalog.DeleteProduct(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Product deleted successfully"})
}

func productFilterFrom(c echo.Context) (store.ProductFilter, error) {
	filter := store.ProductFilter{
		Keyword: c.QueryParam("keyword"),
		Sort:    c.QueryParam("sort"),
		Page:    pageFrom(c),
	}

	if raw := c.QueryParam("category_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return filter, apperr.Validation("invalid category_id")
		}
		categoryID := uint(id)
		filter.CategoryID = &categoryID
	}
	for param, dest := range map[string]**decimal.Decimal{
		"min_price": &filter.MinPrice,
		"max_price": &filter.MaxPrice,
	} {
		raw := c.QueryParam(param)
		if raw == "" {
			continue
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return filter, apperr.Validation("invalid " + param)
		}
		*dest = &value
	}
	return filter, nil
}
