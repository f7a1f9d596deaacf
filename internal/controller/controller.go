package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/pscprep/examengine/internal/cache"
	"github.com/pscprep/examengine/internal/dto"
	"github.com/pscprep/examengine/internal/network"
	"github.com/pscprep/examengine/internal/service"
)

// Controller exposes the engine over the localhost bridge the UI shell
// talks to.
type Controller struct {
	sessions   *service.SessionManager
	catalogSvc service.CatalogService
	contentSvc service.ContentService
	syncSvc    service.SyncService
	monitor    *network.Monitor
	respCache  *cache.ResponseCache
}

func NewController(
	sessions *service.SessionManager,
	catalogSvc service.CatalogService,
	contentSvc service.ContentService,
	syncSvc service.SyncService,
	monitor *network.Monitor,
	respCache *cache.ResponseCache,
) *Controller {
	return &Controller{
		sessions:   sessions,
		catalogSvc: catalogSvc,
		contentSvc: contentSvc,
		syncSvc:    syncSvc,
		monitor:    monitor,
		respCache:  respCache,
	}
}

func (ctrl *Controller) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", ctrl.HealthHandler)

	apiV1 := router.Group("/api/v1")
	{
		sessions := apiV1.Group("/sessions")
		sessions.POST("", ctrl.StartSessionHandler)
		sessions.GET("/current", ctrl.SessionStateHandler)
		sessions.POST("/current/answer", ctrl.SelectAnswerHandler)
		sessions.POST("/current/navigate", ctrl.NavigateHandler)
		sessions.POST("/current/review", ctrl.MarkReviewHandler)
		sessions.POST("/current/submit", ctrl.SubmitHandler)
		sessions.POST("/current/back", ctrl.BackHandler)
		sessions.DELETE("/current", ctrl.EndSessionHandler)

		tests := apiV1.Group("/tests")
		tests.GET("", ctrl.ListTestsHandler)
		tests.GET("/counts", ctrl.TestCountsHandler)

		content := apiV1.Group("/content")
		content.GET("/categories", ctrl.CachedCategoriesHandler)
		content.POST("/categories/:id/download", ctrl.DownloadCategoryHandler)
		content.GET("/categories/:id/questions", ctrl.CachedQuestionsHandler)
		content.DELETE("/categories/:id", ctrl.ClearCategoryHandler)
		content.DELETE("", ctrl.ClearContentHandler)

		apiV1.POST("/connectivity", ctrl.ConnectivityHandler)
		apiV1.POST("/foreground", ctrl.ForegroundHandler)
		apiV1.GET("/queue", ctrl.QueueStatsHandler)
		apiV1.POST("/queue/flush", ctrl.FlushQueueHandler)
		apiV1.GET("/cache", ctrl.CacheStatsHandler)
		apiV1.DELETE("/cache", ctrl.ClearCacheHandler)
	}
}

func (ctrl *Controller) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "online": ctrl.monitor.IsOnline()})
}

// --- Session handlers ---

func (ctrl *Controller) StartSessionHandler(c *gin.Context) {
	var req dto.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Failed to bind StartSessionRequest")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}

	session, err := ctrl.sessions.Begin(c.Request.Context(), req.TestID)
	if err != nil {
		if errors.Is(err, service.ErrSessionInProgress) {
			c.JSON(http.StatusConflict, dto.ErrorResponse{Message: err.Error()})
			return
		}
		log.Error().Err(err).Int64("testID", req.TestID).Msg("Failed to start session")
		c.JSON(http.StatusBadGateway, dto.ErrorResponse{Message: "Failed to start attempt: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, session.State())
}

func (ctrl *Controller) SessionStateHandler(c *gin.Context) {
	session, err := ctrl.sessions.Current()
	if err != nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, session.State())
}

func (ctrl *Controller) SelectAnswerHandler(c *gin.Context) {
	var req dto.SelectAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}
	session, err := ctrl.sessions.Current()
	if err != nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Message: err.Error()})
		return
	}
	if err := session.SelectAnswer(req.QuestionID, req.AnswerID); err != nil {
		ctrl.sessionMutationError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.State())
}

func (ctrl *Controller) NavigateHandler(c *gin.Context) {
	var req dto.NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}
	session, err := ctrl.sessions.Current()
	if err != nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Message: err.Error()})
		return
	}

	switch {
	case req.Index != nil:
		err = session.Navigate(*req.Index)
	case req.Direction == "next":
		err = session.Next()
	case req.Direction == "previous":
		err = session.Previous()
	default:
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "navigate needs an index or a direction"})
		return
	}
	if err != nil {
		ctrl.sessionMutationError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.State())
}

func (ctrl *Controller) MarkReviewHandler(c *gin.Context) {
	var req dto.MarkReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}
	session, err := ctrl.sessions.Current()
	if err != nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Message: err.Error()})
		return
	}
	if err := session.MarkForReview(req.QuestionID, req.Marked); err != nil {
		ctrl.sessionMutationError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.State())
}

func (ctrl *Controller) SubmitHandler(c *gin.Context) {
	session, err := ctrl.sessions.Current()
	if err != nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Message: err.Error()})
		return
	}

	resp, err := session.Submit(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Submission failed")
		c.JSON(http.StatusBadGateway, dto.ErrorResponse{
			Message: "Submission failed, your answers are still saved locally: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// BackHandler intercepts hardware-back during an active attempt. The UI
// forwards the event here and only dismisses the screen on 200.
func (ctrl *Controller) BackHandler(c *gin.Context) {
	session, err := ctrl.sessions.Current()
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"allowed": true})
		return
	}
	if session.Status().Terminal() {
		c.JSON(http.StatusOK, gin.H{"allowed": true})
		return
	}
	c.JSON(http.StatusConflict, dto.ErrorResponse{
		Message: service.ErrBackNavigation.Error(),
	})
}

func (ctrl *Controller) EndSessionHandler(c *gin.Context) {
	session, err := ctrl.sessions.Current()
	if err != nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Message: err.Error()})
		return
	}
	if !session.Status().Terminal() {
		c.JSON(http.StatusConflict, dto.ErrorResponse{Message: service.ErrBackNavigation.Error()})
		return
	}
	ctrl.sessions.End()
	c.Status(http.StatusNoContent)
}

func (ctrl *Controller) sessionMutationError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrSessionNotActive) {
		c.JSON(http.StatusConflict, dto.ErrorResponse{Message: err.Error()})
		return
	}
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
}

// --- Catalog handlers ---

func (ctrl *Controller) ListTestsHandler(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	filter := c.DefaultQuery("filter", "all")
	branch, _ := strconv.ParseInt(c.Query("branch"), 10, 64)
	var subBranch *int64
	if raw := c.Query("sub_branch"); raw != "" {
		if sb, err := strconv.ParseInt(raw, 10, 64); err == nil {
			subBranch = &sb
		}
	}

	summaries, pageInfo, err := ctrl.catalogSvc.ListTests(c.Request.Context(), page, filter, branch, subBranch)
	if err != nil {
		log.Error().Err(err).Int("page", page).Msg("Failed to list tests")
		c.JSON(http.StatusBadGateway, dto.ErrorResponse{Message: "Failed to retrieve tests: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":    pageInfo.Count,
		"next":     pageInfo.Next,
		"previous": pageInfo.Previous,
		"results":  summaries,
	})
}

func (ctrl *Controller) TestCountsHandler(c *gin.Context) {
	branch, _ := strconv.ParseInt(c.Query("branch"), 10, 64)
	counts, err := ctrl.catalogSvc.Counts(c.Request.Context(), branch)
	if err != nil {
		c.JSON(http.StatusBadGateway, dto.ErrorResponse{Message: "Failed to count tests: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, counts)
}

// --- Offline content handlers ---

func (ctrl *Controller) DownloadCategoryHandler(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid category ID format"})
		return
	}
	name := c.DefaultQuery("name", "")

	count, err := ctrl.contentSvc.DownloadCategory(c.Request.Context(), id, name)
	if err != nil {
		log.Error().Err(err).Int64("categoryID", id).Msg("Failed to download question pack")
		c.JSON(http.StatusBadGateway, dto.ErrorResponse{Message: "Download failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"category_id": id, "questions": count})
}

func (ctrl *Controller) CachedCategoriesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, ctrl.contentSvc.CachedCategories())
}

func (ctrl *Controller) CachedQuestionsHandler(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid category ID format"})
		return
	}
	questions, err := ctrl.contentSvc.CachedQuestions(id)
	if err != nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, questions)
}

func (ctrl *Controller) ClearCategoryHandler(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid category ID format"})
		return
	}
	ctrl.contentSvc.ClearCategory(id)
	c.Status(http.StatusNoContent)
}

func (ctrl *Controller) ClearContentHandler(c *gin.Context) {
	ctrl.contentSvc.ClearAll()
	c.Status(http.StatusNoContent)
}

// --- Connectivity and queue handlers ---

// ConnectivityHandler receives reachability transitions from the host
// platform. Flushing on reconnect happens through the monitor's hooks.
func (ctrl *Controller) ConnectivityHandler(c *gin.Context) {
	var req dto.ConnectivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
		return
	}
	ctrl.monitor.SetOnline(req.Online)
	c.JSON(http.StatusOK, gin.H{"online": ctrl.monitor.IsOnline()})
}

// ForegroundHandler re-probes connectivity when the app returns to the
// foreground; push-style reachability events can be missed while
// backgrounded.
func (ctrl *Controller) ForegroundHandler(c *gin.Context) {
	ctrl.monitor.Recheck(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"online": ctrl.monitor.IsOnline()})
}

func (ctrl *Controller) QueueStatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, ctrl.syncSvc.Stats())
}

func (ctrl *Controller) FlushQueueHandler(c *gin.Context) {
	flushed := ctrl.syncSvc.Flush(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"flushed": flushed, "stats": ctrl.syncSvc.Stats()})
}

func (ctrl *Controller) CacheStatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"cached_responses":  ctrl.respCache.Size(),
		"cached_categories": len(ctrl.contentSvc.CachedCategories()),
	})
}

func (ctrl *Controller) ClearCacheHandler(c *gin.Context) {
	ctrl.respCache.Clear()
	c.Status(http.StatusNoContent)
}
