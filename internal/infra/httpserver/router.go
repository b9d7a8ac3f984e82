package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appbatch "github.com/bryanwahyu/scriptsage/internal/application/batch"
	appingest "github.com/bryanwahyu/scriptsage/internal/application/ingest"
	"github.com/bryanwahyu/scriptsage/internal/domain/analysis"
	"github.com/bryanwahyu/scriptsage/internal/domain/cache"
	"github.com/bryanwahyu/scriptsage/internal/domain/embedding"
	"github.com/bryanwahyu/scriptsage/internal/middleware"
)

type Router struct {
	ingestSvc *appingest.Service
	batchSvc  *appbatch.Coordinator
}

func NewRouter(ingestSvc *appingest.Service, batchSvc *appbatch.Coordinator, health http.HandlerFunc) http.Handler {
	r := &Router{ingestSvc: ingestSvc, batchSvc: batchSvc}
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.RateLimitMiddleware(20, 10))

	if health == nil {
		health = middleware.LivenessHandler
	}
	mux.Get("/health", health)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/scripts", r.wrap(r.handleIngest))
		rt.Get("/scripts/{id}/analysis", r.wrap(r.handleGetAnalysis))
		rt.Get("/scripts/{id}/similar", r.wrap(r.handleFindSimilar))
		rt.Delete("/scripts/{id}", r.wrap(r.handleRemove))
		rt.Post("/batch", r.wrap(r.handleBatch))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			switch {
			case errors.Is(err, cache.ErrNotFound):
				http.Error(w, "not found", http.StatusNotFound)
			case errors.Is(err, cache.ErrStoreUnavailable):
				http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			case errors.Is(err, appingest.ErrSimilarityUnavailable):
				http.Error(w, "similarity search temporarily unavailable", http.StatusServiceUnavailable)
			case errors.Is(err, analysis.ErrQuotaExceeded):
				http.Error(w, "analysis provider quota exceeded", http.StatusTooManyRequests)
			case errors.Is(err, embedding.ErrDimensionMismatch):
				// config error, not a transient failure
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			default:
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		}
	}
}

// POST /v1/scripts
// Body: {"artifact_id": "<optional>", "content": "<script text>"}
// Duplicate content is a success: the response carries duplicate_of
// pointing at the artifacts that already share it.
func (r *Router) handleIngest(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		ArtifactID string `json:"artifact_id"`
		Content    string `json:"content"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest(w, err.Error())
	}
	if body.Content == "" {
		return badRequest(w, "content is required")
	}
	if err := middleware.ValidateContentSize(len(body.Content)); err != nil {
		return badRequest(w, err.Error())
	}
	if body.ArtifactID != "" {
		if err := middleware.ValidateArtifactID(body.ArtifactID); err != nil {
			return badRequest(w, err.Error())
		}
	}

	res, err := r.ingestSvc.Ingest(req.Context(), body.ArtifactID, []byte(body.Content))
	if err != nil {
		return err
	}
	middleware.IncrementIngests()
	if len(res.DuplicateOf) > 0 {
		middleware.IncrementDeduped()
	}
	if res.Analysis != nil && res.Analysis.Degraded() {
		middleware.IncrementDegraded()
	}
	if !res.EmbeddingReady {
		middleware.IncrementEmbeddingsFailed()
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(res)
}

// GET /v1/scripts/{id}/analysis
func (r *Router) handleGetAnalysis(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")

	res, err := r.ingestSvc.GetAnalysis(req.Context(), id)
	if errors.Is(err, appingest.ErrPending) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		return json.NewEncoder(w).Encode(map[string]string{"status": "pending"})
	}
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(res)
}

// GET /v1/scripts/{id}/similar?k=5
func (r *Router) handleFindSimilar(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	k, _ := strconv.Atoi(req.URL.Query().Get("k"))
	k = middleware.ValidateK(k)

	neighbors, err := r.ingestSvc.FindSimilar(req.Context(), id, k)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(map[string]any{
		"artifact_id": id,
		"neighbors":   neighbors,
	})
}

// DELETE /v1/scripts/{id}
// Drops the artifact's vector; cache entries are content-keyed and stay.
func (r *Router) handleRemove(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := r.ingestSvc.Remove(req.Context(), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// POST /v1/batch
// Body: {"items":[{"artifact_id":"a","content":"..."}],
//        "concurrency":4,"rate_per_second":5,"skip_existing":true}
// Runs synchronously and returns the per-item report; individual item
// failures land in the report, not in the HTTP status.
func (r *Router) handleBatch(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Items []struct {
			ArtifactID string `json:"artifact_id"`
			Content    string `json:"content"`
		} `json:"items"`
		Concurrency   int     `json:"concurrency"`
		RatePerSecond float64 `json:"rate_per_second"`
		SkipExisting  bool    `json:"skip_existing"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest(w, err.Error())
	}
	if len(body.Items) == 0 {
		return badRequest(w, "items is required")
	}

	items := make([]appbatch.Item, 0, len(body.Items))
	for _, it := range body.Items {
		items = append(items, appbatch.Item{ArtifactID: it.ArtifactID, Content: []byte(it.Content)})
	}
	report := r.batchSvc.Run(req.Context(), items, appbatch.Options{
		Concurrency:        body.Concurrency,
		RateLimitPerSecond: body.RatePerSecond,
		SkipExisting:       body.SkipExisting,
	})

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(report)
}

// badRequest writes a 400 and returns nil so wrap does not double-write.
func badRequest(w http.ResponseWriter, msg string) error {
	http.Error(w, msg, http.StatusBadRequest)
	return nil
}
