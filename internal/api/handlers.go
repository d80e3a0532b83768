package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/engdrill/internal/ai"
	"github.com/example/engdrill/internal/drill"
	"github.com/example/engdrill/pkg/models"
)

// Service is the drilling engine the handlers call
type Service interface {
	StoreDetections(ctx context.Context, userID string, detections []models.Detection) ([]string, error)
	CreateSession(ctx context.Context, userID string, size int) (*drill.Session, error)
	RecordResult(ctx context.Context, in drill.PracticeInput) (*drill.PracticeOutcome, error)
	Statistics(ctx context.Context, userID string) (*models.MistakeStatistics, error)
	GetMistake(ctx context.Context, id, userID string) (*models.Mistake, error)
	ListMistakes(ctx context.Context, userID string, filter models.MistakeFilter) ([]models.Mistake, error)
	UpdateMistake(ctx context.Context, id, userID string, upd models.MistakeUpdate) (*models.Mistake, error)
	DeleteMistake(ctx context.Context, id, userID string) error
}

const (
	minSessionSize = 1
	maxSessionSize = 20
	maxListLimit   = 100
)

// MistakeHandler serves the /api/mistakes routes
type MistakeHandler struct {
	log *zap.Logger
	svc Service
}

// NewMistakeHandler creates the handler
func NewMistakeHandler(log *zap.Logger, svc Service) *MistakeHandler {
	return &MistakeHandler{log: log, svc: svc}
}

type storeDetectionsRequest struct {
	Detections []models.Detection `json:"detections" binding:"required"`
}

type storeDetectionsResponse struct {
	IDs    []string `json:"ids"`
	Stored int      `json:"stored"`
}

// StoreDetections handles POST /api/mistakes/detections
func (h *MistakeHandler) StoreDetections(c *gin.Context) {
	var req storeDetectionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	h.store(c, req.Detections)
}

// StoreFeedback handles POST /api/mistakes/feedback, the raw output of the
// conversation feedback generator
func (h *MistakeHandler) StoreFeedback(c *gin.Context) {
	var req ai.ConversationFeedback
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.DecodeRaw(); err != nil {
		respondServiceError(c, h.log, &drill.ValidationError{Field: "raw_feedback", Message: err.Error()})
		return
	}
	h.store(c, req.Detections())
}

func (h *MistakeHandler) store(c *gin.Context, detections []models.Detection) {
	ids, err := h.svc.StoreDetections(c.Request.Context(), currentUser(c), detections)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, storeDetectionsResponse{IDs: ids, Stored: len(ids)})
}

// List handles GET /api/mistakes
func (h *MistakeHandler) List(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	mistakes, err := h.svc.ListMistakes(c.Request.Context(), currentUser(c), filter)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mistakes": mistakes})
}

func parseFilter(c *gin.Context) (models.MistakeFilter, error) {
	var filter models.MistakeFilter

	if raw := c.Query("type"); raw != "" {
		t, ok := models.ParseMistakeType(raw)
		if !ok {
			return filter, &drill.ValidationError{Field: "type", Message: "unknown mistake type " + strconv.Quote(raw)}
		}
		filter.Type = &t
	}

	var err error
	if filter.InDrillQueue, err = queryBool(c, "in_drill_queue"); err != nil {
		return filter, err
	}
	if filter.IsLearned, err = queryBool(c, "is_learned"); err != nil {
		return filter, err
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxListLimit {
			return filter, &drill.ValidationError{Field: "limit", Message: "must be between 1 and " + strconv.Itoa(maxListLimit)}
		}
		filter.Limit = limit
	}
	if raw := c.Query("skip"); raw != "" {
		skip, err := strconv.Atoi(raw)
		if err != nil || skip < 0 {
			return filter, &drill.ValidationError{Field: "skip", Message: "must be a non-negative integer"}
		}
		filter.Skip = skip
	}
	return filter, nil
}

func queryBool(c *gin.Context, name string) (*bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, &drill.ValidationError{Field: name, Message: "must be true or false"}
	}
	return &v, nil
}

// DrillSession handles GET /api/mistakes/drill-session
func (h *MistakeHandler) DrillSession(c *gin.Context) {
	size := 0
	if raw := c.Query("session_size"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < minSessionSize || v > maxSessionSize {
			respondError(c, http.StatusBadRequest, "validation_error", "session_size: must be between 1 and 20")
			return
		}
		size = v
	}

	session, err := h.svc.CreateSession(c.Request.Context(), currentUser(c), size)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

type practiceResultRequest struct {
	MistakeID        string   `json:"mistake_id" binding:"required"`
	SessionID        string   `json:"session_id"`
	PerformanceScore *float64 `json:"performance_score"`
	WasSuccessful    bool     `json:"was_successful"`
	UserAnswer       string   `json:"user_answer"`
}

// PracticeResult handles POST /api/mistakes/practice-result
func (h *MistakeHandler) PracticeResult(c *gin.Context) {
	var req practiceResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	outcome, err := h.svc.RecordResult(c.Request.Context(), drill.PracticeInput{
		MistakeID:        req.MistakeID,
		UserID:           currentUser(c),
		SessionID:        req.SessionID,
		PerformanceScore: req.PerformanceScore,
		WasSuccessful:    req.WasSuccessful,
		UserAnswer:       req.UserAnswer,
		IdempotencyKey:   c.GetHeader(IdempotencyKeyHeader),
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// Statistics handles GET /api/mistakes/statistics
func (h *MistakeHandler) Statistics(c *gin.Context) {
	stats, err := h.svc.Statistics(c.Request.Context(), currentUser(c))
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Get handles GET /api/mistakes/:id
func (h *MistakeHandler) Get(c *gin.Context) {
	m, err := h.svc.GetMistake(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

type updateMistakeRequest struct {
	Severity     *int    `json:"severity"`
	Status       *string `json:"status"`
	IsLearned    *bool   `json:"is_learned"`
	InDrillQueue *bool   `json:"in_drill_queue"`
}

// Update handles PATCH /api/mistakes/:id
func (h *MistakeHandler) Update(c *gin.Context) {
	var req updateMistakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	upd := models.MistakeUpdate{
		Severity:     req.Severity,
		IsLearned:    req.IsLearned,
		InDrillQueue: req.InDrillQueue,
	}
	if req.Status != nil {
		status, ok := models.ParseMistakeStatus(*req.Status)
		if !ok {
			respondError(c, http.StatusBadRequest, "validation_error", "status: unknown status "+strconv.Quote(*req.Status))
			return
		}
		upd.Status = &status
	}

	m, err := h.svc.UpdateMistake(c.Request.Context(), c.Param("id"), currentUser(c), upd)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// Delete handles DELETE /api/mistakes/:id
func (h *MistakeHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteMistake(c.Request.Context(), c.Param("id"), currentUser(c)); err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
