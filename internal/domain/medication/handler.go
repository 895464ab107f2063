package medication

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nidohq/nido/internal/platform/auth"
	"github.com/nidohq/nido/internal/platform/db"
	"github.com/nidohq/nido/pkg/pagination"
)

// Handler exposes the scheduling and stock HTTP endpoints.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/occurrences", h.SearchOccurrences)
	g.POST("/occurrences", h.CreateOccurrence)
	g.GET("/occurrences/reminders", h.ListReminders)
	g.GET("/occurrences/:id", h.GetOccurrence)
	g.PUT("/occurrences/:id", h.UpdateOccurrence)
	g.DELETE("/occurrences/:id", h.DeleteOccurrence)

	g.GET("/stock", h.ListStock)
	g.POST("/stock", h.CreateStock)
	g.GET("/stock/:id", h.GetStock)
	g.PUT("/stock/:id", h.UpdateStock)
	g.PATCH("/stock/:id/quantity", h.AdjustStockQuantity)
	g.DELETE("/stock/:id", h.DeleteStock)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func scopeFromQuery(c echo.Context) EditScope {
	if c.QueryParam("scope") == string(ScopeSeries) {
		return ScopeSeries
	}
	return ScopeSingle
}

func (h *Handler) CreateOccurrence(c echo.Context) error {
	ctx := c.Request().Context()
	family := db.FamilyFromContext(ctx)
	userID := auth.UserIDFromContext(ctx)

	var req OccurrenceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	rows, err := h.service.CreateOccurrence(ctx, family, userID, &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"created": len(rows),
		"data":    rows,
	})
}

func (h *Handler) GetOccurrence(c echo.Context) error {
	ctx := c.Request().Context()
	family := db.FamilyFromContext(ctx)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid occurrence id")
	}

	occ, err := h.service.GetOccurrence(ctx, family, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, occ)
}

func (h *Handler) SearchOccurrences(c echo.Context) error {
	ctx := c.Request().Context()
	family := db.FamilyFromContext(ctx)
	p := pagination.FromContext(c)

	params := make(map[string]string)
	for _, key := range []string{"from", "to", "medication", "series"} {
		if v := c.QueryParam(key); v != "" {
			params[key] = v
		}
	}

	rows, total, err := h.service.SearchOccurrences(ctx, family, params, p.Limit, p.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(rows, total, p.Limit, p.Offset))
}

func (h *Handler) UpdateOccurrence(c echo.Context) error {
	ctx := c.Request().Context()
	family := db.FamilyFromContext(ctx)
	userID := auth.UserIDFromContext(ctx)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid occurrence id")
	}

	var req OccurrenceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	rows, err := h.service.UpdateOccurrence(ctx, family, userID, id, scopeFromQuery(c), &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"updated": len(rows),
		"data":    rows,
	})
}

func (h *Handler) DeleteOccurrence(c echo.Context) error {
	ctx := c.Request().Context()
	family := db.FamilyFromContext(ctx)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid occurrence id")
	}

	if err := h.service.DeleteOccurrence(ctx, family, id, scopeFromQuery(c)); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListReminders(c echo.Context) error {
	ctx := c.Request().Context()
	family := db.FamilyFromContext(ctx)
	p := pagination.FromContext(c)

	from := time.Now()
	if v := c.QueryParam("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from timestamp")
		}
		from = parsed
	}

	reminders, total, err := h.service.Reminders(ctx, family, from, p.Limit, p.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(reminders, total, p.Limit, p.Offset))
}

func (h *Handler) CreateStock(c echo.Context) error {
	ctx := c.Request().Context()
	family := db.FamilyFromContext(ctx)

	var item StockItem
	if err := c.Bind(&item); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	created, err := h.service.CreateStock(ctx, family, &item)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetStock(c echo.Context) error {
	ctx := c.Request().Context()
	family := db.FamilyFromContext(ctx)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid stock item id")
	}

	item, err := h.service.GetStock(ctx, family, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) ListStock(c echo.Context) error {
	ctx := c.Request().Context()
	family := db.FamilyFromContext(ctx)
	p := pagination.FromContext(c)

	items, total, err := h.service.ListStock(ctx, family, p.Limit, p.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func (h *Handler) UpdateStock(c echo.Context) error {
	ctx := c.Request().Context()
	family := db.FamilyFromContext(ctx)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid stock item id")
	}

	var item StockItem
	if err := c.Bind(&item); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	updated, err := h.service.UpdateStock(ctx, family, id, &item)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) AdjustStockQuantity(c echo.Context) error {
	ctx := c.Request().Context()
	family := db.FamilyFromContext(ctx)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid stock item id")
	}

	var body struct {
		Quantity float64 `json:"quantity"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	item, err := h.service.AdjustStockQuantity(ctx, family, id, body.Quantity)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) DeleteStock(c echo.Context) error {
	ctx := c.Request().Context()
	family := db.FamilyFromContext(ctx)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid stock item id")
	}

	if err := h.service.DeleteStock(ctx, family, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
