package server

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"melodypath/internal/artifact"
	"melodypath/internal/config"
	"melodypath/internal/pipeline"
	"melodypath/internal/runstore"
	"melodypath/internal/server/middleware"
	"melodypath/internal/source"
	"melodypath/internal/types"
)

const maxUploadBytes = 32 << 20

// Presigner hands out direct download links for stored artifacts.
type Presigner interface {
	URL(ctx context.Context, runID, name string, ttl time.Duration) (string, error)
}

type Deps struct {
	// Config is the base configuration every request starts from.
	Config    config.Config
	Runner    pipeline.Runner
	Artifacts artifact.Store
	Runs      *runstore.Store
	// Links is optional; when set, artifact downloads redirect to it.
	Links   Presigner
	LinkTTL time.Duration
	Now     func() time.Time
}

type Handler struct {
	deps Deps
}

func NewHandler(deps Deps) *Handler {
	if deps.Runner == nil {
		deps.Runner = pipeline.Direct{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.LinkTTL <= 0 {
		deps.LinkTTL = 15 * time.Minute
	}
	return &Handler{deps: deps}
}

// Router wires every route behind CORS.
func (h *Handler) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", h.health)
	r.GET("/api/runs", h.listRuns)
	r.POST("/api/runs", h.createRun)
	r.GET("/api/runs/:id", h.getRun)
	r.GET("/api/runs/:id/:artifact", h.getArtifact)
	r.GET("/ws/keyframes", h.streamKeyframes)
	return middleware.CORS(r)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "runstore": h.deps.Runs.Backend()})
}

func (h *Handler) createRun(c *gin.Context) {
	cfg := h.deps.Config
	if err := cfg.Override(c.Query("preset"), c.Query("policy"), c.Query("mode")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if raw := strings.TrimSpace(c.Query("track")); raw != "" {
		idx, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "track must be an integer"})
			return
		}
		cfg.MelodyTrack = idx
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	}
	track, err := source.DecodeJSON(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if track.ID == "" {
		track.ID = "upload"
	}

	ctx := c.Request.Context()
	res, err := h.deps.Runner.Run(ctx, cfg, track.Melody(cfg.MelodyTrack))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, types.ErrInvalidConfiguration) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	runID := runstore.NewRunID()
	sum, err := artifact.WriteResult(ctx, h.deps.Artifacts, runID, res)
	if err != nil {
		log.Printf("server: write artifacts run=%s: %v", runID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store artifacts"})
		return
	}
	if _, err := h.deps.Runs.Put(runstore.FromSummary(sum, h.deps.Now())); err != nil {
		log.Printf("server: record run=%s: %v", runID, err)
	}
	c.Header("X-Run-Id", runID)
	c.Header("Location", "/api/runs/"+runID)
	c.JSON(http.StatusCreated, sum)
}

func (h *Handler) listRuns(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	runs, err := h.deps.Runs.List(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (h *Handler) getRun(c *gin.Context) {
	id := c.Param("id")
	rec, err := h.deps.Runs.Get(id)
	if err != nil {
		if errors.Is(err, runstore.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	names, err := h.deps.Artifacts.List(c.Request.Context(), rec.RunID)
	if err != nil {
		log.Printf("server: list artifacts run=%s: %v", rec.RunID, err)
	}
	c.JSON(http.StatusOK, gin.H{"run": rec, "artifacts": names})
}

func (h *Handler) getArtifact(c *gin.Context) {
	id, name := c.Param("id"), c.Param("artifact")
	ctx := c.Request.Context()
	if h.deps.Links != nil {
		url, err := h.deps.Links.URL(ctx, id, name, h.deps.LinkTTL)
		if err == nil {
			c.Redirect(http.StatusTemporaryRedirect, url)
			return
		}
		log.Printf("server: presign %s/%s: %v", id, name, err)
	}
	raw, err := h.deps.Artifacts.Get(ctx, id, name)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "artifact not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}
