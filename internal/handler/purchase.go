package handler

import (
	"fmt"
	"iap-entitlement-service/internal/dto"
	"iap-entitlement-service/internal/middleware"
	"iap-entitlement-service/internal/model"
	"iap-entitlement-service/internal/service"
	"net/http"

	"github.com/labstack/echo/v4"
)

type PurchaseHandler struct {
	purchaseService service.PurchaseService
}

func NewPurchaseHandler(purchaseService service.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{
		purchaseService: purchaseService,
	}
}

func currentUser(c echo.Context) (uint, error) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}
	return userID, nil
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	if err := c.Validate(req); err != nil {
		return fmt.Errorf("%w: %v", service.ErrInvalidRequest, err)
	}
	return nil
}

func (h *PurchaseHandler) VerifyPurchase(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req dto.VerifyPurchaseRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	resp, err := h.purchaseService.VerifyPurchase(ctx, userID, service.VerifyPurchaseInput{
		Receipt:     req.Receipt,
		PackageType: model.PackageType(req.PackageType),
		RequestType: service.ResolveRequestType(req.RequestType, bool(req.IsRestore)),
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *PurchaseHandler) AddPoints(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req dto.AddPointsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	payment, err := h.purchaseService.AddPoints(ctx, userID, service.AddPointsInput{
		Receipt: req.Receipt,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, payment)
}
