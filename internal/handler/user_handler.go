package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"shop-service/internal/model"
	"shop-service/internal/service"
)

type updateUserRequest struct {
	Name     *string     `json:"name"`
	Email    *string     `json:"email"`
	Password *string     `json:"password"`
	Role     *model.Role `json:"role"`
}

// ListUsers returns a page of users.
func (h *Handler) ListUsers(c echo.Context) error {
	page := pageFrom(c)
	users, total, err := h.users.ListUsers(c.Request().Context(), page)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newListResponse(users, total, page))
}

// GetUser returns one user.
func (h *Handler) GetUser(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	user, err := h.users.GetUser(c.Request().Context(), principal(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateUser applies a partial update to a user.
func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req updateUserRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}

	user, err := h.users.UpdateUser(c.Request().Context(), principal(c), id, service.UserPatch{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

// DeleteUser removes a user.
func (h *Handler) DeleteUser(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.users.DeleteUser(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "User deleted successfully"})
}

// ToggleUserStatus blocks or unblocks a user.
func (h *Handler) ToggleUserStatus(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	user, err := h.users.ToggleStatus(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

// Stats returns the order statistics.
func (h *Handler) Stats(c echo.Context) error {
	stats, err := h.orders.Stats(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}
