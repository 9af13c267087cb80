package handler

import (
	"iap-entitlement-service/internal/dto"
	"iap-entitlement-service/internal/model"
	"iap-entitlement-service/internal/service"
	"net/http"

	"github.com/labstack/echo/v4"
)

type PackageHandler struct {
	catalog service.CatalogResolver
}

func NewPackageHandler(catalog service.CatalogResolver) *PackageHandler {
	return &PackageHandler{
		catalog: catalog,
	}
}

func (h *PackageHandler) ListPackages(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.ListPackagesRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	items, err := h.catalog.ListItems(ctx, model.PackageType(req.PackageType))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, items)
}
