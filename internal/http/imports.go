package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nself-org/chat-importer/internal/adapters"
	"github.com/nself-org/chat-importer/internal/database"
	"github.com/nself-org/chat-importer/internal/importer"
	"github.com/nself-org/chat-importer/internal/tasks"
)

// ImportsController exposes the import pipeline over HTTP: upload an
// export, watch its progress, cancel it, browse run history.
type ImportsController struct {
	manager     *importer.Manager
	tasks       *tasks.Client
	runs        *database.RunRepository
	newGateway  func(cfg importer.Config) importer.Gateway
	uploadsDir  string
	fileWorkers int
}

// NewImportsController wires the controller. A nil tasks client makes
// every upload run synchronously.
func NewImportsController(
	manager *importer.Manager,
	taskClient *tasks.Client,
	runs *database.RunRepository,
	newGateway func(cfg importer.Config) importer.Gateway,
	uploadsDir string,
	fileWorkers int,
) *ImportsController {
	return &ImportsController{
		manager:     manager,
		tasks:       taskClient,
		runs:        runs,
		newGateway:  newGateway,
		uploadsDir:  uploadsDir,
		fileWorkers: fileWorkers,
	}
}

type startImportResponse struct {
	ID       string `json:"id"`
	Platform string `json:"platform"`
	Status   string `json:"status"`
}

// Start accepts a multipart upload and either enqueues a background
// import run or, with ?wait=true, runs it inline and returns the full
// result. Payloads that fail to parse are rejected up front.
func (ctl *ImportsController) Start(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": "missing export file: " + err.Error()})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()
	raw, err := io.ReadAll(file)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	platform := c.PostForm("platform")
	if platform == "" {
		platform = adapters.Detect(raw)
	}

	cfg, err := parseImportConfig(c.PostForm("config"))
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Parse synchronously so a malformed payload surfaces immediately
	// instead of as a failed background run.
	adapter, err := adapters.ForPlatform(platform)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	export, err := adapters.Load(adapter, raw)
	if err != nil {
		c.IndentedJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	imp := importer.New(ctl.newGateway(cfg), cfg, importer.WithFileWorkers(ctl.fileWorkers))
	run := ctl.manager.Register(platform, imp)

	if c.Query("wait") == "true" || ctl.tasks == nil {
		started := time.Now()
		result := imp.Run(c.Request.Context(), export)
		run.Finish(result)
		if err := ctl.runs.SaveResult(run.ID, platform, started, result); err != nil {
			c.IndentedJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.IndentedJSON(http.StatusOK, gin.H{"id": run.ID, "result": result})
		return
	}

	stagedPath, err := ctl.stagePayload(run.ID, raw)
	if err != nil {
		ctl.manager.Remove(run.ID)
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	op := ctl.tasks.Add(tasks.ImportRunTask{
		RunID:    run.ID,
		Platform: platform,
		Path:     stagedPath,
		Options:  cfg,
	})
	if err := op.Save(); err != nil {
		ctl.manager.Remove(run.ID)
		os.Remove(stagedPath)
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.IndentedJSON(http.StatusAccepted, startImportResponse{
		ID:       run.ID,
		Platform: platform,
		Status:   string(importer.StatusIdle),
	})
}

// Progress reports the live state of a run, falling back to the
// persisted record once the run has left the manager.
func (ctl *ImportsController) Progress(c *gin.Context) {
	id := c.Param("id")
	if run, err := ctl.manager.Get(id); err == nil {
		c.IndentedJSON(http.StatusOK, gin.H{
			"id":       run.ID,
			"platform": run.Platform,
			"progress": run.Progress(),
			"stats":    run.Stats(),
		})
		return
	}

	record, err := ctl.runs.Get(id)
	if err != nil {
		c.IndentedJSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown import run %q", id)})
		return
	}
	c.IndentedJSON(http.StatusOK, record)
}

// Cancel requests cooperative cancellation of a live run.
func (ctl *ImportsController) Cancel(c *gin.Context) {
	id := c.Param("id")
	run, err := ctl.manager.Get(id)
	if err != nil {
		c.IndentedJSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	run.Cancel()
	c.IndentedJSON(http.StatusOK, gin.H{"id": id, "cancelled": true})
}

// List returns persisted run history, newest first.
func (ctl *ImportsController) List(c *gin.Context) {
	runs, err := ctl.runs.List(50)
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"count": len(runs), "runs": runs})
}

func (ctl *ImportsController) stagePayload(runID string, raw []byte) (string, error) {
	if err := os.MkdirAll(ctl.uploadsDir, 0o755); err != nil {
		return "", fmt.Errorf("create uploads dir: %w", err)
	}
	path := filepath.Join(ctl.uploadsDir, runID+".export")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("stage export payload: %w", err)
	}
	return path, nil
}

func parseImportConfig(raw string) (importer.Config, error) {
	cfg := importer.DefaultConfig()
	if raw == "" {
		return cfg, nil
	}
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
