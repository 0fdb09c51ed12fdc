package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"herdcore/internal/core"
	"herdcore/pkg/domain"
)

type handler struct {
	svc    Service
	logger *zap.Logger
}

type errorBody struct {
	Code       string          `json:"code"`
	Message    string          `json:"message"`
	Violations []violationBody `json:"violations,omitempty"`
}

type violationBody struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Entity   string `json:"entity"`
	EntityID string `json:"entity_id"`
}

type envelope struct {
	Data       any             `json:"data"`
	Violations []violationBody `json:"violations,omitempty"`
}

// animalView is an animal with its derived position and last weighing.
type animalView struct {
	core.Animal
	LocationID string             `json:"location_id,omitempty"`
	Present    bool               `json:"present"`
	Weight     *core.WeightRecord `json:"weight,omitempty"`
}

func violations(res core.Result) []violationBody {
	if len(res.Violations) == 0 {
		return nil
	}
	out := make([]violationBody, len(res.Violations))
	for i, v := range res.Violations {
		out[i] = violationBody{
			Rule:     v.Rule,
			Severity: string(v.Severity),
			Message:  v.Message,
			Entity:   string(v.Entity),
			EntityID: v.EntityID,
		}
	}
	return out
}

func (h *handler) respond(c *gin.Context, status int, data any, res core.Result) {
	c.JSON(status, envelope{Data: data, Violations: violations(res)})
}

// fail maps service errors: not found to 404, coded domain errors and
// blocking rules to 422, anything else to 500.
func (h *handler) fail(c *gin.Context, err error) {
	var blocked domain.RuleViolationError
	switch {
	case errors.As(err, &blocked):
		c.JSON(http.StatusUnprocessableEntity, errorBody{Code: "RuleViolation", Message: err.Error(), Violations: violations(blocked.Result)})
	case domain.HasCode(err, domain.CodeNotFound):
		c.JSON(http.StatusNotFound, errorBody{Code: string(domain.CodeNotFound), Message: err.Error()})
	case domain.Code(err) != "":
		c.JSON(http.StatusUnprocessableEntity, errorBody{Code: string(domain.Code(err)), Message: err.Error()})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorBody{Code: "Internal", Message: "internal error"})
	}
}

func (h *handler) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		h.logger.Warn("invalid request body", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusBadRequest, errorBody{Code: "InvalidRequest", Message: err.Error()})
		return false
	}
	return true
}

func (h *handler) createAnimal(c *gin.Context) {
	var in core.Animal
	if !h.bind(c, &in) {
		return
	}
	in.ID = ""
	created, res, err := h.svc.CreateAnimal(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, http.StatusCreated, created, res)
}

func (h *handler) getAnimal(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	a, err := h.svc.GetAnimal(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	view := animalView{Animal: a}
	if view.LocationID, view.Present, err = h.svc.AnimalLocation(ctx, id, time.Time{}); err != nil {
		h.fail(c, err)
		return
	}
	w, ok, err := h.svc.CurrentWeight(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if ok {
		view.Weight = &w
	}
	h.respond(c, http.StatusOK, view, core.Result{})
}

func (h *handler) createGroup(c *gin.Context) {
	var in core.AnimalGroup
	if !h.bind(c, &in) {
		return
	}
	in.ID = ""
	created, res, err := h.svc.CreateGroup(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, http.StatusCreated, created, res)
}

func (h *handler) createEvent(c *gin.Context) {
	var in core.Event
	if !h.bind(c, &in) {
		return
	}
	in.ID = ""
	created, res, err := h.svc.CreateEvent(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, http.StatusCreated, created, res)
}

func (h *handler) deleteEvent(c *gin.Context) {
	res, err := h.svc.DeleteEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(res.Violations) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	h.respond(c, http.StatusOK, nil, res)
}

func (h *handler) createFeedInventory(c *gin.Context) {
	var in core.FeedInventory
	if !h.bind(c, &in) {
		return
	}
	in.ID = ""
	created, res, err := h.svc.CreateFeedInventory(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, http.StatusCreated, created, res)
}

func (h *handler) createEventOrder(c *gin.Context) {
	var in core.EventOrder
	if !h.bind(c, &in) {
		return
	}
	in.ID = ""
	created, res, err := h.svc.CreateEventOrder(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, http.StatusCreated, created, res)
}

func transition[T any](h *handler, fn func(context.Context, string) (T, core.Result, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, res, err := fn(c.Request.Context(), c.Param("id"))
		if err != nil {
			h.fail(c, err)
			return
		}
		h.respond(c, http.StatusOK, out, res)
	}
}

func (h *handler) eventTransition(fn func(context.Context, string) (core.Event, core.Result, error)) gin.HandlerFunc {
	return transition(h, fn)
}

func (h *handler) inventoryTransition(fn func(context.Context, string) (core.FeedInventory, core.Result, error)) gin.HandlerFunc {
	return transition(h, fn)
}

func (h *handler) orderTransition(fn func(context.Context, string) (core.EventOrder, core.Result, error)) gin.HandlerFunc {
	return transition(h, fn)
}
