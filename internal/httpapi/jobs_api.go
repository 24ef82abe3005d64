package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/madpin/Neureed-sub002/internal/cache"
	"github.com/madpin/Neureed-sub002/internal/database"
	"github.com/madpin/Neureed-sub002/internal/logging"
	"github.com/madpin/Neureed-sub002/internal/models"
	"github.com/madpin/Neureed-sub002/internal/ratelimit"
)

// jobStatusCacheKey holds the status snapshot briefly so a polling UI does
// not hammer the scheduler.
const (
	jobStatusCacheKey = "jobs:status"
	jobStatusCacheTTL = 5 * time.Second
)

// Scheduler is the job control surface the API exposes.
type Scheduler interface {
	Status() []models.JobStatus
	TriggerRefresh(ctx context.Context) models.JobResult
	TriggerCleanup(ctx context.Context) models.JobResult
	TriggerEmbeddings(ctx context.Context) models.JobResult
	TriggerFeedRefresh(ctx context.Context, feedID, userID string) models.JobResult
	TriggerUserRefresh(ctx context.Context, userID string) models.JobResult
}

// JobHistory reads the job audit trail.
type JobHistory interface {
	List(ctx context.Context, jobName string, limit int) ([]models.JobRun, error)
}

// CostReporter aggregates the embedding cost ledger.
type CostReporter interface {
	Summary(ctx context.Context) (*models.CostSummary, error)
}

// FeedAdmin covers operator interventions on feeds. A quarantined feed stays
// excluded from batches until someone resets its error counter here.
type FeedAdmin interface {
	ResetQuarantine(ctx context.Context, feedID string) error
}

// JobsAPI handles job status, history, trigger, cost, and feed-admin
// endpoints.
type JobsAPI struct {
	scheduler      Scheduler
	history        JobHistory
	costs          CostReporter
	feeds          FeedAdmin
	statusCache    cache.Cache
	triggerLimiter ratelimit.RateLimiter
	logger         *logging.Logger
}

func NewJobsAPI(scheduler Scheduler, history JobHistory, costs CostReporter, feeds FeedAdmin, statusCache cache.Cache, triggerLimiter ratelimit.RateLimiter, logger *logging.Logger) *JobsAPI {
	return &JobsAPI{
		scheduler:      scheduler,
		history:        history,
		costs:          costs,
		feeds:          feeds,
		statusCache:    statusCache,
		triggerLimiter: triggerLimiter,
		logger:         logger,
	}
}

// RegisterRoutes registers the jobs routes.
func (api *JobsAPI) RegisterRoutes(mux *http.ServeMux, corsMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("/api/jobs/status", corsMiddleware(api.handleStatus))
	mux.HandleFunc("/api/jobs/history", corsMiddleware(api.handleHistory))
	mux.HandleFunc("/api/jobs/refresh/trigger", corsMiddleware(api.handleTriggerRefresh))
	mux.HandleFunc("/api/jobs/cleanup/trigger", corsMiddleware(api.handleTriggerCleanup))
	mux.HandleFunc("/api/jobs/embeddings/trigger", corsMiddleware(api.handleTriggerEmbeddings))
	mux.HandleFunc("/api/feeds/", corsMiddleware(api.handleFeeds))
	mux.HandleFunc("/api/users/", corsMiddleware(api.handleUserRefresh))
	mux.HandleFunc("/api/embeddings/costs", corsMiddleware(api.handleCosts))
}

// handleStatus handles GET /api/jobs/status.
func (api *JobsAPI) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if api.statusCache != nil {
		if cached, ok := api.statusCache.Get(jobStatusCacheKey); ok {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	payload := map[string]interface{}{"jobs": api.scheduler.Status()}
	if api.statusCache != nil {
		api.statusCache.SetWithTTL(jobStatusCacheKey, payload, jobStatusCacheTTL)
	}
	writeJSON(w, http.StatusOK, payload)
}

// handleHistory handles GET /api/jobs/history?job=&limit=.
func (api *JobsAPI) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	runs, err := api.history.List(r.Context(), r.URL.Query().Get("job"), limit)
	if err != nil {
		api.logger.Error("failed to list job history", logging.WithField("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list job history"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// handleTriggerRefresh handles POST /api/jobs/refresh/trigger.
func (api *JobsAPI) handleTriggerRefresh(w http.ResponseWriter, r *http.Request) {
	api.trigger(w, r, api.scheduler.TriggerRefresh)
}

// handleTriggerCleanup handles POST /api/jobs/cleanup/trigger.
func (api *JobsAPI) handleTriggerCleanup(w http.ResponseWriter, r *http.Request) {
	api.trigger(w, r, api.scheduler.TriggerCleanup)
}

// handleTriggerEmbeddings handles POST /api/jobs/embeddings/trigger.
func (api *JobsAPI) handleTriggerEmbeddings(w http.ResponseWriter, r *http.Request) {
	api.trigger(w, r, api.scheduler.TriggerEmbeddings)
}

func (api *JobsAPI) trigger(w http.ResponseWriter, r *http.Request, run func(ctx context.Context) models.JobResult) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	result := run(r.Context())
	api.invalidateStatus()
	writeJSON(w, triggerStatus(result), result)
}

// handleFeeds dispatches POST /api/feeds/{id}/refresh and
// POST /api/feeds/{id}/reset-errors.
func (api *JobsAPI) handleFeeds(w http.ResponseWriter, r *http.Request) {
	if feedID, ok := pathResource(r.URL.Path, "/api/feeds/", "refresh"); ok {
		api.handleFeedRefresh(w, r, feedID)
		return
	}
	if feedID, ok := pathResource(r.URL.Path, "/api/feeds/", "reset-errors"); ok {
		api.handleFeedResetErrors(w, r, feedID)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

func (api *JobsAPI) handleFeedRefresh(w http.ResponseWriter, r *http.Request, feedID string) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if api.triggerLimiter != nil && !api.triggerLimiter.Allow("feed:"+feedID) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "feed refresh recently triggered, try again later"})
		return
	}

	result := api.scheduler.TriggerFeedRefresh(r.Context(), feedID, r.URL.Query().Get("userId"))
	api.invalidateStatus()
	writeJSON(w, triggerStatus(result), result)
}

// handleFeedResetErrors clears a feed's quarantine so the next batch picks it
// up again.
func (api *JobsAPI) handleFeedResetErrors(w http.ResponseWriter, r *http.Request, feedID string) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if err := api.feeds.ResetQuarantine(r.Context(), feedID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "feed not found"})
			return
		}
		api.logger.Error("failed to reset feed quarantine",
			logging.WithField("feed_id", feedID),
			logging.WithField("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to reset feed errors"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "feedId": feedID})
}

// handleUserRefresh handles POST /api/users/{id}/refresh.
func (api *JobsAPI) handleUserRefresh(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathResource(r.URL.Path, "/api/users/", "refresh")
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if api.triggerLimiter != nil && !api.triggerLimiter.Allow("user:"+userID) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "user refresh recently triggered, try again later"})
		return
	}

	result := api.scheduler.TriggerUserRefresh(r.Context(), userID)
	api.invalidateStatus()
	writeJSON(w, triggerStatus(result), result)
}

// handleCosts handles GET /api/embeddings/costs.
func (api *JobsAPI) handleCosts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	summary, err := api.costs.Summary(r.Context())
	if err != nil {
		api.logger.Error("failed to summarize cost ledger", logging.WithField("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to summarize costs"})
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (api *JobsAPI) invalidateStatus() {
	if api.statusCache != nil {
		api.statusCache.Delete(jobStatusCacheKey)
	}
}

// triggerStatus maps a job result to an HTTP status: skipped duplicates are
// 409, failures 500, everything else 200.
func triggerStatus(result models.JobResult) int {
	if result.Skipped {
		return http.StatusConflict
	}
	if !result.Success {
		return http.StatusInternalServerError
	}
	return http.StatusOK
}

// pathResource extracts {id} from prefix + "{id}/" + action paths.
func pathResource(path, prefix, action string) (string, bool) {
	rest := strings.TrimPrefix(path, prefix)
	if rest == path {
		return "", false
	}
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != action {
		return "", false
	}
	return parts[0], true
}
