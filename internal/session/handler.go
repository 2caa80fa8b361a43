package session

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"nci-backend/internal/criteria"
	"nci-backend/internal/ingest"
	"nci-backend/internal/shared/server/middleware"
	"nci-backend/internal/shared/server/respond"
	"nci-backend/internal/snapshots"
)

// multipart framing on top of the file itself
const maxUploadBody = ingest.MaxUploadSize + 1<<20

// Handler wires HTTP handlers to the session service.
type Handler struct {
	Svc      *Service
	Events   *EventStream
	analyzeM []gin.HandlerFunc
}

// NewHandler constructs a Handler. analyzeMiddleware runs in front of the
// analyze endpoint only (rate limiting).
func NewHandler(svc *Service, events *EventStream, analyzeMiddleware ...gin.HandlerFunc) *Handler {
	return &Handler{Svc: svc, Events: events, analyzeM: analyzeMiddleware}
}

// RegisterRoutes attaches session routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/criteria", h.listCriteria)
	rg.GET("/session", h.getSession)
	rg.PUT("/session/scores/:id", h.setScore)
	rg.PUT("/session/text", h.setText)
	rg.POST("/session/file", h.upload)
	rg.DELETE("/session/file", h.removeFile)
	rg.POST("/session/analyze", append(h.analyzeM, h.analyze)...)
	rg.POST("/session/reset", h.reset)
	rg.POST("/session/save", h.save)
	rg.POST("/session/load", h.load)
	if h.Events != nil {
		rg.GET("/session/events", h.Events.Serve)
	}
}

func requestContext(c *gin.Context) context.Context {
	return WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
}

func (h *Handler) listCriteria(c *gin.Context) {
	ranges := criteria.Ranges()
	guide := make([]gin.H, 0, len(ranges))
	for _, r := range ranges {
		guide = append(guide, gin.H{
			"min":   r.Min,
			"max":   r.Max,
			"level": r.Level,
			"label": r.Level.Label(),
			"color": r.Color,
		})
	}
	respond.OK(c, gin.H{
		"criteria": criteria.All(),
		"ranges":   guide,
		"minScore": criteria.MinScore,
		"maxScore": criteria.MaxScore,
	})
}

func (h *Handler) getSession(c *gin.Context) {
	respond.OK(c, h.Svc.Session.View())
}

type scoreRequest struct {
	Score *int `json:"score"`
}

func (h *Handler) setScore(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "criterion id must be an integer", nil)
		return
	}
	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Score == nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "score is required", []map[string]string{
			{"field": "score", "issue": "required"},
		})
		return
	}
	if err := h.Svc.Session.SetScore(id, *req.Score); err != nil {
		if errors.Is(err, ErrUnknownCriterion) {
			respond.Error(c, http.StatusNotFound, ErrorCodeNotFound, "criterion not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to set score", nil)
		return
	}
	respond.OK(c, h.Svc.Session.View())
}

type textRequest struct {
	Text *string `json:"text"`
}

func (h *Handler) setText(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "text is required", []map[string]string{
			{"field": "text", "issue": "required"},
		})
		return
	}
	h.Svc.Session.SetInputText(*req.Text)
	respond.OK(c, h.Svc.Session.View())
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBody)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "file is required", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "unable to read file", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, ingest.MaxUploadSize+1))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "unable to read file", nil)
		return
	}

	if err := h.Svc.Upload(requestContext(c), fileHeader.Filename, data); err != nil {
		switch {
		case errors.Is(err, ingest.ErrUnsupportedFormat):
			respond.Error(c, http.StatusUnsupportedMediaType, ErrorCodeUnsupported, uploadMessage(fileHeader.Filename, err), nil)
		case errors.Is(err, ingest.ErrExtractorUnavailable), errors.Is(err, ingest.ErrExtractionFailed):
			respond.Error(c, http.StatusUnprocessableEntity, ErrorCodeExtraction, uploadMessage(fileHeader.Filename, err), nil)
		case errors.Is(err, ingest.ErrTooLarge):
			respond.Error(c, http.StatusRequestEntityTooLarge, ErrorCodeValidation, "file exceeds 10MB limit", nil)
		case errors.Is(err, ingest.ErrInvalidFileName):
			respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "invalid file name", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, uploadMessage(fileHeader.Filename, err), nil)
		}
		return
	}
	respond.OK(c, h.Svc.Session.View())
}

func (h *Handler) removeFile(c *gin.Context) {
	h.Svc.RemoveAttachment(requestContext(c))
	respond.OK(c, h.Svc.Session.View())
}

func (h *Handler) analyze(c *gin.Context) {
	runID, err := h.Svc.StartAnalysis(requestContext(c))
	if err != nil {
		switch {
		case errors.Is(err, ErrAnalysisInProgress):
			respond.Error(c, http.StatusConflict, ErrorCodeBusy, "analysis already in progress", nil)
		case isNoContent(err):
			respond.Error(c, http.StatusBadRequest, ErrorCodeNoContent, "provide text or attach a file before analyzing", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to start analysis", nil)
		}
		return
	}
	c.Set("analysisId", runID)
	c.Set("statusTransition", "idle->analyzing")
	respond.JSON(c, http.StatusAccepted, gin.H{
		"runId":  runID,
		"status": StatusAnalyzing,
	})
}

func (h *Handler) reset(c *gin.Context) {
	h.Svc.Reset(requestContext(c))
	respond.OK(c, h.Svc.Session.View())
}

func (h *Handler) save(c *gin.Context) {
	saved, err := h.Svc.Save(requestContext(c))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, ErrorCodeStorage, snapshotMessage(err), nil)
		return
	}
	respond.OK(c, gin.H{
		"message":   MsgSaved,
		"timestamp": saved.Timestamp,
	})
}

func (h *Handler) load(c *gin.Context) {
	if _, err := h.Svc.Load(requestContext(c)); err != nil {
		switch {
		case errors.Is(err, snapshots.ErrNothingSaved):
			respond.Error(c, http.StatusNotFound, ErrorCodeNotFound, snapshotMessage(err), nil)
		case errors.Is(err, snapshots.ErrLoadFailed):
			respond.Error(c, http.StatusInternalServerError, ErrorCodeStorage, snapshotMessage(err), nil)
		default:
			respond.Error(c, http.StatusUnprocessableEntity, ErrorCodeCorrupt, snapshotMessage(err), nil)
		}
		return
	}
	respond.OK(c, h.Svc.Session.View())
}
