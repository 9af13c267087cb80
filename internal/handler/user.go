package handler

import (
	"iap-entitlement-service/internal/service"
	"net/http"

	"github.com/labstack/echo/v4"
)

type UserHandler struct {
	userService service.UserService
}

func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

func (h *UserHandler) GetAccount(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	account, err := h.userService.GetAccount(ctx, userID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, account)
}
