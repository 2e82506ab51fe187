package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tommypurcell/autoscape-api/internal/core/ports"
)

// VideoEnqueuer accepts a transformation video job for asynchronous processing.
type VideoEnqueuer interface {
	Enqueue(job ports.VideoJob)
}

// DesignHandler handles HTTP requests for design generation and management.
type DesignHandler struct {
	designs  ports.DesignService
	resolver ports.DesignResolver
	videos   VideoEnqueuer
}

func NewDesignHandler(designs ports.DesignService, resolver ports.DesignResolver, videos VideoEnqueuer) *DesignHandler {
	return &DesignHandler{designs: designs, resolver: resolver, videos: videos}
}

// Generate handles POST /v1/designs — one full generation flow.
//
// @Summary      Generate a landscape design from a yard photo
// @Tags         designs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Device-ID  header    string                 false  "Device id, required for anonymous callers"
// @Param        body         body      generateDesignRequest  true   "Generation parameters"
// @Success      201          {object}  generateDesignResponse
// @Failure      400          {object}  errorResponse
// @Failure      402          {object}  errorResponse
// @Failure      502          {object}  errorResponse
// @Router       /v1/designs [post]
func (h *DesignHandler) Generate(c echo.Context) error {
	var req generateDesignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}

	result, err := h.designs.Generate(c.Request().Context(), ports.GenerateDesignInput{
		Principal:           p,
		YardImage:           req.YardImage,
		Prompt:              req.Prompt,
		StyleID:             req.StyleID,
		Budget:              req.Budget,
		LocationType:        req.LocationType,
		SpaceSize:           req.SpaceSize,
		UseRAG:              req.UseRAG,
		UploadedStyleImages: req.StyleImages,
		GalleryStyleImages:  req.GalleryStyles,
		MakePublic:          req.MakePublic,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, generateDesignResponse{
		ShortID:   result.ShortID,
		Ephemeral: result.Ephemeral,
		Balance:   result.Balance,
		Result:    toDesignResultResponse(result.Result),
		Links:     designLinks{Self: "/v1/designs/" + result.ShortID},
	})
}

// Get handles GET /v1/designs/:id where :id is a short id or a tmp- hand-off id.
//
// @Summary      Resolve a design by its shareable or hand-off id
// @Tags         designs
// @Produce      json
// @Param        id  path      string  true  "Short id or tmp- hand-off id"
// @Success      200 {object}  designResultResponse
// @Failure      404 {object}  errorResponse
// @Router       /v1/designs/{id} [get]
func (h *DesignHandler) Get(c echo.Context) error {
	p, _ := ctxPrincipal(c)

	result, err := h.resolver.Resolve(c.Request().Context(), c.Param("id"), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toDesignResultResponse(*result))
}

// ListOwn handles GET /v1/designs — the caller's saved designs.
//
// @Summary      List the caller's saved designs
// @Tags         designs
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object}  listDesignsResponse
// @Failure      401 {object}  errorResponse
// @Router       /v1/designs [get]
func (h *DesignHandler) ListOwn(c echo.Context) error {
	p, err := ctxUser(c)
	if err != nil {
		return err
	}

	designs, err := h.designs.ListOwn(c.Request().Context(), p)
	if err != nil {
		return err
	}

	data := make([]savedDesignResponse, 0, len(designs))
	for _, d := range designs {
		data = append(data, toSavedDesignResponse(d))
	}
	return c.JSON(http.StatusOK, listDesignsResponse{Data: data})
}

// Gallery handles GET /v1/gallery — the newest public designs.
//
// @Summary      Browse public designs
// @Tags         designs
// @Produce      json
// @Param        limit  query     int  false  "Maximum number of designs (default 50)"
// @Success      200    {object}  listDesignsResponse
// @Router       /v1/gallery [get]
func (h *DesignHandler) Gallery(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	designs, err := h.designs.ListGallery(c.Request().Context(), limit)
	if err != nil {
		return err
	}

	data := make([]savedDesignResponse, 0, len(designs))
	for _, d := range designs {
		data = append(data, toSavedDesignResponse(d))
	}
	return c.JSON(http.StatusOK, listDesignsResponse{Data: data})
}

// Publish handles PATCH /v1/designs/:id/visibility.
//
// @Summary      Toggle a design's public visibility
// @Tags         designs
// @Accept       json
// @Security     BearerAuth
// @Param        id    path  string          true  "Short id"
// @Param        body  body  publishRequest  true  "Desired visibility"
// @Success      204
// @Failure      403 {object}  errorResponse
// @Failure      404 {object}  errorResponse
// @Router       /v1/designs/{id}/visibility [patch]
func (h *DesignHandler) Publish(c echo.Context) error {
	var req publishRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	p, err := ctxUser(c)
	if err != nil {
		return err
	}

	if err := h.designs.Publish(c.Request().Context(), c.Param("id"), req.Public, p); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete handles DELETE /v1/designs/:id.
//
// @Summary      Delete a saved design
// @Tags         designs
// @Security     BearerAuth
// @Param        id  path  string  true  "Short id"
// @Success      204
// @Failure      403 {object}  errorResponse
// @Failure      404 {object}  errorResponse
// @Router       /v1/designs/{id} [delete]
func (h *DesignHandler) Delete(c echo.Context) error {
	p, err := ctxUser(c)
	if err != nil {
		return err
	}

	if err := h.designs.Delete(c.Request().Context(), c.Param("id"), p); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// RequestVideo handles POST /v1/designs/:id/video — queues a transformation
// video for an already saved design and returns immediately.
//
// @Summary      Request a before/after transformation video
// @Tags         designs
// @Produce      json
// @Security     BearerAuth
// @Param        id  path      string  true  "Short id"
// @Success      202 {object}  videoRequestedResponse
// @Failure      401 {object}  errorResponse
// @Router       /v1/designs/{id}/video [post]
func (h *DesignHandler) RequestVideo(c echo.Context) error {
	p, err := ctxUser(c)
	if err != nil {
		return err
	}

	shortID := c.Param("id")
	h.videos.Enqueue(ports.VideoJob{ShortID: shortID, RequestedBy: p.Key(), Role: p.Role})

	return c.JSON(http.StatusAccepted, videoRequestedResponse{
		ShortID: shortID,
		Status:  "queued",
	})
}
