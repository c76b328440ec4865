package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"greendrake/dunning/internal/auth"
	"greendrake/dunning/internal/channels/mock"
	"greendrake/dunning/internal/config"
	"greendrake/dunning/internal/dunning"
	"greendrake/dunning/internal/logger"
	"greendrake/dunning/internal/services"
	"greendrake/dunning/internal/tasks"
)

const (
	defaultEventsLimit = 50
	maxEventsLimit     = 500

	testReminderPolls     = 10
	testReminderPollDelay = 100 * time.Millisecond
)

// Context key type for AuthResult
type authContextKey string

const authResultKey authContextKey = "authResult"

// IAsynqClient defines the interface for the Asynq client methods used by the handler.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// JsonApiRequest defines the expected structure for JSON API requests.
type JsonApiRequest struct {
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// JsonApiResponse defines the structure for JSON API responses.
type JsonApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// apiMethodFunc defines the signature for handler methods.
type apiMethodFunc func(c *gin.Context, args json.RawMessage) (interface{}, *ApiError)

// JsonApiHandler serves the service API's POST /api method dispatch.
type JsonApiHandler struct {
	cfg        *config.Config
	rdb        *redis.Client // Only used to read mocked reminders
	taskClient IAsynqClient
	runner     tasks.DunningRunner
	audit      services.IAuditService
	shutdown   chan<- struct{}
	methods    map[string]apiMethodFunc
	log        zerolog.Logger
}

// NewJsonApiHandler creates a new handler for the JSON API endpoint. rdb,
// taskClient, audit and shutdown may be nil; the methods that need them then
// report themselves unavailable.
func NewJsonApiHandler(
	cfg *config.Config,
	rdb *redis.Client,
	taskClient IAsynqClient,
	runner tasks.DunningRunner,
	audit services.IAuditService,
	shutdown chan<- struct{},
) *JsonApiHandler {
	h := &JsonApiHandler{
		cfg:        cfg,
		rdb:        rdb,
		taskClient: taskClient,
		runner:     runner,
		audit:      audit,
		shutdown:   shutdown,
		log:        logger.Component("service_api"),
	}
	h.methods = map[string]apiMethodFunc{
		"ping":             h.ping,
		"runDunning":       h.runDunning,
		"enqueueDunning":   h.enqueueDunning,
		"getInvoiceEvents": h.getInvoiceEvents,
		"getTestReminder":  h.getTestReminder,
		"shutdown":         h.shutdownService,
	}
	return h
}

// HandleRequest is the main entry point for POST /api
func (h *JsonApiHandler) HandleRequest(c *gin.Context) {
	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.sendErrorResponse(c, "Failed to read request body")
		return
	}

	var req JsonApiRequest
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		h.sendErrorResponse(c, "Invalid JSON request format")
		return
	}

	handlerFunc, ok := h.methods[req.Method]
	if !ok {
		h.sendErrorResponse(c, fmt.Sprintf("Unknown method: %s", req.Method))
		return
	}

	if authErr := h.checkAuthForMethod(c, req.Method); authErr != nil {
		h.sendErrorResponse(c, authErr.Message)
		return
	}

	result, apiErr := handlerFunc(c, req.Arguments)
	if apiErr != nil {
		h.sendErrorResponse(c, apiErr.Message)
		return
	}

	h.sendSuccessResponse(c, result)
}

// AuthResult holds the caller identity of an authenticated request.
type AuthResult struct {
	UserID  string
	IsAdmin bool
}

// checkAuthForMethod validates the bearer token when the method needs one and
// stores the AuthResult in c.Request.Context().
func (h *JsonApiHandler) checkAuthForMethod(c *gin.Context, method string) *ApiError {
	if !h.methodRequiresAuth(method) {
		return nil
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return NewApiError("Authorization header required")
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return NewApiError("Authorization header format must be Bearer {token}")
	}
	claims, err := auth.ValidateJWT(parts[1], h.cfg.JwtSecret)
	if err != nil {
		h.log.Debug().Err(err).Str("method", method).Msg("Token validation failed")
		return NewApiError(fmt.Sprintf("Invalid or expired token: %v", err))
	}

	if h.methodRequiresAdmin(method) && !claims.IsAdmin {
		h.log.Debug().Str("method", method).Str("user_id", claims.UserID).Msg("Admin privileges required but not present")
		return NewApiError("Administrator privileges required")
	}

	authRes := &AuthResult{UserID: claims.UserID, IsAdmin: claims.IsAdmin}
	ctx := context.WithValue(c.Request.Context(), authResultKey, authRes)
	c.Request = c.Request.WithContext(ctx)
	return nil
}

// methodRequiresAuth checks if a given API method requires authentication.
func (h *JsonApiHandler) methodRequiresAuth(method string) bool {
	switch method {
	case "ping":
		return false
	default:
		return true
	}
}

// methodRequiresAdmin checks if a given API method requires admin privileges.
func (h *JsonApiHandler) methodRequiresAdmin(method string) bool {
	switch method {
	case "runDunning",
		"enqueueDunning",
		"getTestReminder",
		"shutdown":
		return true
	default:
		return false
	}
}

func callerID(c *gin.Context) string {
	if res, ok := c.Request.Context().Value(authResultKey).(*AuthResult); ok {
		return res.UserID
	}
	return ""
}

// --- Private helper methods ---

func (h *JsonApiHandler) sendSuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, JsonApiResponse{Success: true, Data: data})
}

func (h *JsonApiHandler) sendErrorResponse(c *gin.Context, message string) {
	c.JSON(http.StatusOK, JsonApiResponse{Success: false, Error: message})
}

type ApiError struct {
	Message string
}

func (e *ApiError) Error() string {
	return e.Message
}

func NewApiError(message string) *ApiError {
	return &ApiError{Message: message}
}

// parseRunArgs accepts a missing or null arguments field as "all defaults".
func parseRunArgs(args json.RawMessage) (tasks.DunningRunPayload, *ApiError) {
	var payload tasks.DunningRunPayload
	if len(args) > 0 && string(args) != "null" {
		if err := json.Unmarshal(args, &payload); err != nil {
			return payload, NewApiError("Invalid arguments: expected {org_id, batch_size, dry_run}")
		}
	}
	if payload.BatchSize < 0 {
		return payload, NewApiError("batch_size must not be negative")
	}
	return payload, nil
}

// --- API Method Implementations ---

func (h *JsonApiHandler) ping(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args
	return "pong", nil
}

func (h *JsonApiHandler) runDunning(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	payload, apiErr := parseRunArgs(args)
	if apiErr != nil {
		return nil, apiErr
	}
	res := h.runner.Run(c.Request.Context(), dunning.RunOptions{
		OrgID:     payload.OrgID,
		BatchSize: payload.BatchSize,
		DryRun:    payload.DryRun,
	})
	h.log.Info().
		Str("run_id", res.RunID).
		Str("caller", callerID(c)).
		Int("sent", res.Sent).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Msg("Manual dunning run finished")
	return res, nil
}

func (h *JsonApiHandler) enqueueDunning(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	if h.taskClient == nil {
		return nil, NewApiError("Task queue unavailable")
	}
	payload, apiErr := parseRunArgs(args)
	if apiErr != nil {
		return nil, apiErr
	}
	task, err := tasks.NewDunningRunTask(payload, h.cfg.DunningRunLockTTL)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build dunning task")
		return nil, NewApiError("Failed to build task")
	}
	info, err := h.taskClient.EnqueueContext(c.Request.Context(), task)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue dunning task")
		return nil, NewApiError("Failed to enqueue task")
	}
	h.log.Info().Str("task_id", info.ID).Str("caller", callerID(c)).Msg("Dunning run enqueued")
	return gin.H{"task_id": info.ID, "queue": info.Queue}, nil
}

func (h *JsonApiHandler) getInvoiceEvents(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	if h.audit == nil {
		return nil, NewApiError("Audit store unavailable")
	}
	var req struct {
		InvoiceID string `json:"invoice_id"`
		Limit     int    `json:"limit"`
	}
	if err := json.Unmarshal(args, &req); err != nil || strings.TrimSpace(req.InvoiceID) == "" {
		return nil, NewApiError("Invalid arguments: expected {invoice_id, limit}")
	}
	if req.Limit <= 0 {
		req.Limit = defaultEventsLimit
	}
	if req.Limit > maxEventsLimit {
		req.Limit = maxEventsLimit
	}
	events, err := h.audit.ListByInvoice(c.Request.Context(), req.InvoiceID, req.Limit)
	if err != nil {
		h.log.Error().Err(err).Str("invoice_id", req.InvoiceID).Msg("Failed to list dunning events")
		return nil, NewApiError("Database error")
	}
	return events, nil
}

// getTestReminder returns (and removes) the reminder a mock sink stored for
// [channel, recipient]. Only available with MOCK_SERVICES on.
func (h *JsonApiHandler) getTestReminder(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	if !h.cfg.MockServices || h.rdb == nil {
		return nil, NewApiError("Mock services disabled")
	}
	var pair []string
	if err := json.Unmarshal(args, &pair); err != nil || len(pair) != 2 {
		return nil, NewApiError("Invalid arguments: expected JSON array [channel, recipient]")
	}
	redisKey := mock.Key(pair[0], pair[1])

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	for i := 0; i < testReminderPolls; i++ {
		data, err := h.rdb.GetDel(ctx, redisKey).Result()
		if err == nil {
			var stored mock.StoredReminder
			if err := json.Unmarshal([]byte(data), &stored); err != nil {
				h.log.Error().Err(err).Str("key", redisKey).Msg("Failed to parse stored reminder")
				return nil, NewApiError("Failed to parse stored reminder")
			}
			return stored, nil
		}
		if !errors.Is(err, redis.Nil) {
			h.log.Error().Err(err).Str("key", redisKey).Msg("Redis error reading test reminder")
			return nil, NewApiError("Redis error")
		}
		select {
		case <-ctx.Done():
			return nil, NewApiError("Timed out waiting for test reminder")
		case <-time.After(testReminderPollDelay):
		}
	}
	return nil, NewApiError(fmt.Sprintf("Test reminder not found in Redis for key %s", redisKey))
}

func (h *JsonApiHandler) shutdownService(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args
	if h.shutdown == nil {
		return nil, NewApiError("Shutdown not supported")
	}
	h.log.Warn().Str("caller", callerID(c)).Msg("Received shutdown command via service API")
	select {
	case h.shutdown <- struct{}{}:
	default:
		h.log.Info().Msg("Shutdown channel already signaled")
	}
	return "Shutdown initiated", nil
}

// InvoiceEvents serves GET /v1/admin/invoice/:id/events. Auth is done by the
// route's middleware.
func (h *JsonApiHandler) InvoiceEvents(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
		return
	}
	args, _ := json.Marshal(gin.H{"invoice_id": c.Param("id"), "limit": limit})
	events, apiErr := h.getInvoiceEvents(c, args)
	if apiErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": apiErr.Message})
		return
	}
	c.JSON(http.StatusOK, events)
}
