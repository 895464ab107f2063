package family

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nidohq/nido/internal/platform/auth"
	"github.com/nidohq/nido/pkg/pagination"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/families", h.ListGroups)
	g.POST("/families", h.CreateGroup)
	g.GET("/families/:slug", h.GetGroup)
	g.PUT("/families/:slug", h.UpdateGroup)
	g.GET("/families/:slug/members", h.ListMembers)
	g.POST("/families/:slug/members", h.AddMember)
	g.DELETE("/families/:slug/members/:id", h.RemoveMember)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, "already exists")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func (h *Handler) CreateGroup(c echo.Context) error {
	ctx := c.Request().Context()

	var body struct {
		Slug        string `json:"slug"`
		Name        string `json:"name"`
		DisplayName string `json:"display_name"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	g := &Group{Slug: body.Slug, Name: body.Name}
	if err := h.service.CreateGroup(ctx, auth.UserIDFromContext(ctx), body.DisplayName, g); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, g)
}

func (h *Handler) GetGroup(c echo.Context) error {
	g, err := h.service.GetGroup(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) UpdateGroup(c echo.Context) error {
	var body struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	g := &Group{Slug: c.Param("slug"), Name: body.Name}
	if err := h.service.UpdateGroup(c.Request().Context(), g); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) ListGroups(c echo.Context) error {
	p := pagination.FromContext(c)
	groups, total, err := h.service.ListGroups(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(groups, total, p.Limit, p.Offset))
}

func (h *Handler) AddMember(c echo.Context) error {
	var m Member
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.service.AddMember(c.Request().Context(), c.Param("slug"), &m); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, &m)
}

func (h *Handler) ListMembers(c echo.Context) error {
	p := pagination.FromContext(c)
	members, total, err := h.service.ListMembers(c.Request().Context(), c.Param("slug"), p.Limit, p.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(members, total, p.Limit, p.Offset))
}

func (h *Handler) RemoveMember(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid member id")
	}

	if err := h.service.RemoveMember(c.Request().Context(), c.Param("slug"), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
