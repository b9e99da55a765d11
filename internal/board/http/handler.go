package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kah-digital/agency-backend/internal/board"
	"github.com/kah-digital/agency-backend/internal/leads/domain"
	"github.com/kah-digital/agency-backend/internal/leads/repository"
)

// Handler bundles the dependencies for the admin triage endpoints.
type Handler struct {
	store  repository.Store
	metas  board.MetaStore
	writer *board.TriageWriter
}

func New(store repository.Store, metas board.MetaStore, writer *board.TriageWriter) *Handler {
	return &Handler{store: store, metas: metas, writer: writer}
}

// Register attaches the gated admin routes.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/leads", h.listLeads)
	rg.PATCH("/leads", h.patchLead)
	rg.GET("/board", h.boardSnapshot)
	rg.POST("/board/pipeline", h.setPipeline)
	rg.POST("/board/notes", h.addNote)
	rg.GET("/board/export", h.exportCSV)
}

func (h *Handler) listLeads(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	items, err := h.store.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "could not load leads"})
		return
	}
	// Pending optimistic writes win over a concurrently polled stale read.
	items = h.writer.Overlay(items)
	c.JSON(http.StatusOK, gin.H{"ok": true, "items": items})
}

type patchLeadReq struct {
	ID          string `json:"id"`
	SubmittedAt string `json:"submittedAt"`
	Feasibility string `json:"feasibility"`
	Deposit     string `json:"deposit"`
}

func (h *Handler) patchLead(c *gin.Context) {
	var req patchLeadReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	lead := domain.LeadRecord{ID: req.ID}
	if req.ID == "" {
		if req.SubmittedAt == "" {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "id or submittedAt required"})
			return
		}
		ts, err := time.Parse(time.RFC3339, req.SubmittedAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid submittedAt"})
			return
		}
		lead.SubmittedAt = ts
	}

	var patch repository.TriagePatch
	if req.Feasibility != "" {
		feas := domain.Feasibility(req.Feasibility)
		if !feas.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid feasibility"})
			return
		}
		patch.Feasibility = &feas
	}
	if req.Deposit != "" {
		dep := domain.Deposit(req.Deposit)
		if !dep.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid deposit"})
			return
		}
		patch.Deposit = &dep
	}
	if patch.Feasibility == nil && patch.Deposit == nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "nothing to update"})
		return
	}

	updated, err := h.writer.Update(c.Request.Context(), lead, patch)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "lead not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "update failed, previous value restored"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "lead": updated})
}

func (h *Handler) boardSnapshot(c *gin.Context) {
	views, _, err := h.load(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "could not load board"})
		return
	}

	snapshot := board.Apply(views.leads, views.metas, queryFrom(c), time.Now())
	c.JSON(http.StatusOK, gin.H{"ok": true, "board": snapshot})
}

type pipelineReq struct {
	Key      string `json:"key"`
	Pipeline string `json:"pipeline"`
}

func (h *Handler) setPipeline(c *gin.Context) {
	var req pipelineReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	stage := board.Pipeline(req.Pipeline)
	if !stage.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid pipeline stage"})
		return
	}

	metas, err := h.metas.Load(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "could not load annotations"})
		return
	}

	meta, ok := metas[req.Key]
	if !ok {
		meta = board.DefaultMeta()
	}
	meta.SetPipeline(stage, time.Now().UTC())
	metas[req.Key] = meta

	if err := h.metas.Save(c.Request.Context(), metas); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "could not save annotations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "meta": meta})
}

type noteReq struct {
	Key  string `json:"key"`
	Body string `json:"body"`
}

func (h *Handler) addNote(c *gin.Context) {
	var req noteReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" || req.Body == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	metas, err := h.metas.Load(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "could not load annotations"})
		return
	}

	meta, ok := metas[req.Key]
	if !ok {
		meta = board.DefaultMeta()
	}
	note := meta.AddNote(req.Body, time.Now().UTC())
	metas[req.Key] = meta

	if err := h.metas.Save(c.Request.Context(), metas); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "could not save annotations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "note": note})
}

func (h *Handler) exportCSV(c *gin.Context) {
	views, _, err := h.load(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "could not load board"})
		return
	}

	label := c.DefaultQuery("label", "all")
	query := board.Query{}
	if label == "filtered" {
		query = queryFrom(c)
	}

	snapshot := board.Apply(views.leads, views.metas, query, time.Now())
	csv := board.ExportCSV(snapshot.Displayed)

	filename := fmt.Sprintf("kah-digital-leads-%s-%s.csv", label, time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(csv))
}

type boardData struct {
	leads []domain.LeadRecord
	metas map[string]board.AdminMeta
}

func (h *Handler) load(c *gin.Context) (boardData, int, error) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
	leads, err := h.store.ListRecent(c.Request.Context(), limit)
	if err != nil {
		return boardData{}, 0, err
	}
	leads = h.writer.Overlay(leads)

	metas, err := h.metas.Load(c.Request.Context())
	if err != nil {
		return boardData{}, 0, err
	}
	return boardData{leads: leads, metas: metas}, len(leads), nil
}

func queryFrom(c *gin.Context) board.Query {
	return board.Query{
		Feasibility: domain.Feasibility(c.Query("feasibility")),
		Deposit:     domain.Deposit(c.Query("deposit")),
		Pipeline:    board.Pipeline(c.Query("pipeline")),
		Source:      board.SourceFilter(c.Query("source")),
		Search:      c.Query("search"),
		Sort:        board.SortOrder(c.DefaultQuery("sort", "recent")),
	}
}
