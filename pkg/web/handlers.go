package web

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/gramflow/gramflow/pkg/models"
	"github.com/gramflow/gramflow/pkg/persistence"
	"github.com/gramflow/gramflow/pkg/ratelimit"
	"github.com/gramflow/gramflow/pkg/registry"
)

const defaultHistoryLimit = 50

// APIHandlers implements the workflow management endpoints.
type APIHandlers struct {
	persistence persistence.Persistence
	limiter     *ratelimit.Limiter
	validator   *validator.Validate
	registry    *registry.Registry
	logger      *slog.Logger
}

// NewAPIHandlers creates the handler set.
func NewAPIHandlers(
	logger *slog.Logger,
	persist persistence.Persistence,
	limiter *ratelimit.Limiter,
	validate *validator.Validate,
	reg *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		persistence: persist,
		limiter:     limiter,
		validator:   validate,
		registry:    reg,
		logger:      logger.With("module", "web"),
	}
}

// GetWorkflows lists all workflows.
func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.persistence.WorkflowRepository().Workflows(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":   workflows,
		"total_count": len(workflows),
	})
}

// GetWorkflow returns one workflow.
func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.persistence.WorkflowRepository().WorkflowByID(c.Context(), id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(workflow)
}

// CreateWorkflow creates a workflow. Workflows default to draft status.
func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	status := req.Status
	if status == "" {
		status = models.WorkflowStatusDraft
	}

	workflow := &models.Workflow{
		ID:          "wf-" + uuid.New().String()[:8],
		Name:        req.Name,
		Description: req.Description,
		Status:      status,
		Nodes:       req.Nodes,
		Edges:       req.Edges,
		RateLimits:  req.RateLimits,
		Credentials: req.Credentials,
		Owner:       req.Owner,
	}

	if detail, ok := h.checkWorkflow(workflow); !ok {
		return badRequest(c, detail)
	}

	if err := h.persistence.WorkflowRepository().Save(c.Context(), workflow); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(workflow)
}

// UpdateWorkflow applies a partial update to a workflow.
func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.persistence.WorkflowRepository().WorkflowByID(c.Context(), id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.Status != nil {
		existing.Status = *req.Status
	}

	if req.Nodes != nil {
		existing.Nodes = req.Nodes
	}

	if req.Edges != nil {
		existing.Edges = req.Edges
	}

	if req.RateLimits != nil {
		existing.RateLimits = req.RateLimits
	}

	if detail, ok := h.checkWorkflow(existing); !ok {
		return badRequest(c, detail)
	}

	if err := h.persistence.WorkflowRepository().Save(c.Context(), existing); err != nil {
		return internalError(c, err)
	}

	return c.JSON(existing)
}

// DeleteWorkflow removes a workflow.
func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	err := h.persistence.WorkflowRepository().Delete(c.Context(), id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// GetExecutions lists a workflow's executions, newest first.
func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	_, err := h.persistence.WorkflowRepository().WorkflowByID(c.Context(), id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	executions, err := h.persistence.ExecutionRepository().ExecutionsByWorkflow(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions":  executions,
		"total_count": len(executions),
	})
}

// GetExecution returns one execution with its node records.
func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.persistence.ExecutionRepository().ExecutionByID(c.Context(), id)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			return notFound(c, "Execution not found")
		}

		return internalError(c, err)
	}

	records, err := h.persistence.ExecutionRepository().NodeExecutions(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(ExecutionResponse{Execution: execution, Nodes: records})
}

// CancelExecution requests cooperative cancellation of a running
// execution. The engine observes the status flip between phases.
func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.persistence.ExecutionRepository().ExecutionByID(c.Context(), id)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			return notFound(c, "Execution not found")
		}

		return internalError(c, err)
	}

	if execution.Status != models.ExecutionStatusRunning {
		return badRequest(c, "Only running executions can be cancelled")
	}

	now := time.Now().UTC()
	execution.Status = models.ExecutionStatusCancelled
	execution.CompletedAt = &now

	if err := h.persistence.ExecutionRepository().SaveExecution(c.Context(), execution); err != nil {
		return internalError(c, err)
	}

	return c.JSON(execution)
}

// GetLimiterStats returns a workflow's current hourly and daily action
// counts.
func (h *APIHandlers) GetLimiterStats(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	stats, err := h.limiter.Stats(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(stats)
}

// GetLimiterHistory returns a workflow's recent actions, newest first.
func (h *APIHandlers) GetLimiterHistory(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	limit := defaultHistoryLimit

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			return badRequest(c, "Invalid limit parameter")
		}

		limit = parsed
	}

	history, err := h.limiter.History(c.Context(), id, limit)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"actions": history})
}

// GetNodeKinds lists the registered node kinds with their config schemas.
func (h *APIHandlers) GetNodeKinds(c fiber.Ctx) error {
	kinds := h.registry.Kinds()
	response := make([]NodeKindResponse, 0, len(kinds))

	for _, kind := range kinds {
		factory, err := h.registry.Factory(kind)
		if err != nil {
			return internalError(c, err)
		}

		response = append(response, NodeKindResponse{
			Kind:        kind,
			Name:        factory.Name(),
			Description: factory.Description(),
			Schema:      factory.Schema(),
		})
	}

	return c.JSON(fiber.Map{"kinds": response})
}

// HealthCheck reports persistence health.
func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := fiber.StatusOK

	err := h.persistence.HealthCheck(c.Context())
	if err != nil {
		h.logger.ErrorContext(c.Context(), "Persistence health check failed", "error", err)

		status = "unhealthy"
		httpStatus = fiber.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}

// checkWorkflow validates graph-level constraints the struct validator
// cannot see: node kinds must be registered, and an active workflow needs
// at least one enabled trigger node.
func (h *APIHandlers) checkWorkflow(workflow *models.Workflow) (string, bool) {
	for _, node := range workflow.Nodes {
		if _, err := h.registry.Factory(node.Kind); err != nil {
			return "Unknown node kind: " + string(node.Kind), false
		}
	}

	if workflow.Status == models.WorkflowStatusActive {
		if !workflow.HasTriggerFor(models.TriggerKindComment) && !workflow.HasTriggerFor(models.TriggerKindDM) {
			return "An active workflow needs at least one enabled trigger node", false
		}
	}

	return "", true
}
