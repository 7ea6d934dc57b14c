package publicapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/effectai/engine-sub003/pkg/entitystore"
	"github.com/effectai/engine-sub003/pkg/ledger"
	"github.com/effectai/engine-sub003/pkg/manager"
	"github.com/effectai/engine-sub003/pkg/models"
	"github.com/effectai/engine-sub003/pkg/protocol"
)

type EndpointParams struct {
	Router  *protocol.Router
	Tasks   *manager.TaskManager
	Workers *manager.WorkerManager
	Ledger  *ledger.Ledger
}

// Endpoint implements the REST handlers. Task submission goes through the
// router's action registry rather than calling the task manager directly, so
// the HTTP surface and any future local caller share one entry point.
type Endpoint struct {
	router  *protocol.Router
	tasks   *manager.TaskManager
	workers *manager.WorkerManager
	ledger  *ledger.Ledger
}

func NewEndpoint(params EndpointParams) *Endpoint {
	return &Endpoint{
		router:  params.Router,
		tasks:   params.Tasks,
		workers: params.Workers,
		ledger:  params.Ledger,
	}
}

// RegisterRoutes installs the handlers on the /api/v1 group.
func (e *Endpoint) RegisterRoutes(group *echo.Group) {
	group.POST("/tasks", e.createTask)
	group.GET("/tasks", e.listTasks)
	group.GET("/tasks/:id", e.getTask)
	group.GET("/workers", e.listWorkers)
	group.GET("/workers/:id/payments", e.getWorkerPayments)
}

type CreateTaskRequest struct {
	ID               string          `json:"id,omitempty"`
	Title            string          `json:"title"`
	Reward           uint64          `json:"reward"`
	TimeLimitSeconds int64           `json:"time_limit_seconds"`
	TemplateID       string          `json:"template_id,omitempty"`
	TemplateData     json.RawMessage `json:"template_data,omitempty"`
	Provider         string          `json:"provider,omitempty"`
}

func (e *Endpoint) createTask(c echo.Context) error {
	ctx := c.Request().Context()

	var req CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}

	result, err := e.router.InvokeAction(ctx, manager.ActionTaskCreate, manager.CreateTaskRequest{
		ID:               req.ID,
		Title:            req.Title,
		Reward:           req.Reward,
		TimeLimitSeconds: req.TimeLimitSeconds,
		TemplateID:       req.TemplateID,
		TemplateData:     req.TemplateData,
		Provider:         req.Provider,
	})
	if err != nil {
		if errors.As(err, &manager.ErrDuplicateTask{}) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return err
	}

	// kick a manage pass so the task does not wait for the next tick
	if _, err := e.router.InvokeAction(ctx, manager.ActionTaskManage, nil); err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, result)
}

func (e *Endpoint) listTasks(c echo.Context) error {
	ctx := c.Request().Context()

	status := models.TaskStatus(c.QueryParam("status"))
	entities, err := e.tasks.ListTasks(ctx, status)
	if err != nil {
		return err
	}

	states := lo.Map(entities, func(entity entitystore.Entity[models.TaskState, models.TaskEvent], _ int) models.TaskState {
		return entity.Record.State
	})
	return c.JSON(http.StatusOK, states)
}

func (e *Endpoint) getTask(c echo.Context) error {
	ctx := c.Request().Context()

	state, err := e.tasks.GetTask(ctx, c.Param("id"))
	if err != nil {
		if errors.As(err, &entitystore.ErrEntityNotFound{}) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return err
	}
	return c.JSON(http.StatusOK, state)
}

func (e *Endpoint) listWorkers(c echo.Context) error {
	ctx := c.Request().Context()

	entities, err := e.workers.ListWorkers(ctx)
	if err != nil {
		return err
	}

	states := lo.Map(entities, func(entity entitystore.Entity[models.WorkerState, models.WorkerEvent], _ int) models.WorkerState {
		return entity.Record.State
	})
	return c.JSON(http.StatusOK, states)
}

func (e *Endpoint) getWorkerPayments(c echo.Context) error {
	ctx := c.Request().Context()

	page := queryInt(c, "page", 1)
	perPage := queryInt(c, "per_page", ledger.DefaultPerPage)

	payments, err := e.ledger.GetPayments(ctx, c.Param("id"), page, perPage)
	if err != nil {
		if errors.As(err, &entitystore.ErrEntityNotFound{}) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return err
	}
	return c.JSON(http.StatusOK, payments)
}

func queryInt(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
