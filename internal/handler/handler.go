// Package handler exposes the shop services over HTTP.
package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"shop-service/internal/apperr"
	"shop-service/internal/auth"
	"shop-service/internal/middleware"
	"shop-service/internal/service"
	"shop-service/internal/store"
	"shop-service/pkg/config"
	"shop-service/pkg/logger"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups the application services served over HTTP.
type Services struct {
	Users    *service.UserService
	Catalog  *service.CatalogService
	Carts    *service.CartService
	Orders   *service.OrderService
	Comments *service.CommentService
}

// Handler holds the HTTP handlers.
type Handler struct {
	users    *service.UserService
	catalog  *service.CatalogService
	carts    *service.CartService
	orders   *service.OrderService
	comments *service.CommentService
	session  config.JWTConfig
	checks   map[string]Pinger
}

// New creates a Handler. checks are pinged by the health endpoint.
func New(svc Services, session config.JWTConfig, checks map[string]Pinger) *Handler {
	return &Handler{
		users:    svc.Users,
		catalog:  svc.Catalog,
		carts:    svc.Carts,
		orders:   svc.Orders,
		comments: svc.Comments,
		session:  session,
		checks:   checks,
	}
}

type listResponse struct {
	Data  interface{} `json:"data"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

func newListResponse(data interface{}, total int64, page store.Page) listResponse {
	page = page.Normalize()
	return listResponse{Data: data, Total: total, Page: page.Page, Limit: page.Limit}
}

// respondError writes err as {"error": message} with the status of its kind.
func respondError(c echo.Context, err error) error {
	status := apperr.HTTPStatus(err)
	log := logger.FromEcho(c)
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", zap.Error(err))
	} else {
		log.Warn("Request rejected", zap.Int("status", status), zap.Error(err))
	}
	return c.JSON(status, echo.Map{"error": apperr.PublicMessage(err)})
}

func bind(c echo.Context, dest interface{}) error {
	if err := c.Bind(dest); err != nil {
		return apperr.Validation("invalid request body")
	}
	return nil
}

func parseID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid " + name)
	}
	return uint(id), nil
}

func pageFrom(c echo.Context) store.Page {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return store.Page{Page: page, Limit: limit}.Normalize()
}

func principal(c echo.Context) auth.Principal {
	p, _ := middleware.PrincipalFrom(c)
	return p
}
