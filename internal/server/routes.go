package server

import (
	"bytes"
	"encoding/json"
	"html/template"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"

	"github.com/air23zj/pal-sub001/internal/brief"
	"github.com/air23zj/pal-sub001/internal/store"
)

var md = goldmark.New()

var indexTmpl = template.Must(template.New("index").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>Daybrief</title></head>
<body style="max-width: 44rem; margin: 2rem auto; font-family: sans-serif; line-height: 1.5;">
{{.Body}}
</body>
</html>`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ab, err := s.db.GetLatestBrief(s.userID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	body := "_No brief yet. Run `daybrief run` first._"
	if ab != nil {
		body = ab.BodyMarkdown
	}

	var buf bytes.Buffer
	if err := md.Convert([]byte(body), &buf); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = indexTmpl.Execute(w, map[string]any{
		"Body": template.HTML(buf.String()), //nolint: gosec
	})
	if err != nil {
		log.Printf("Error rendering brief page: %v", err)
	}
}

func (s *Server) handleLatestBrief(w http.ResponseWriter, r *http.Request) {
	ab, err := s.db.GetLatestBrief(s.userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading brief: %v", err)
		return
	}
	if ab == nil {
		writeError(w, http.StatusNotFound, "no briefs yet")
		return
	}
	s.writeBrief(w, ab)
}

func (s *Server) handleBriefByRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	ab, err := s.db.GetBrief(runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading brief: %v", err)
		return
	}
	if ab == nil {
		writeError(w, http.StatusNotFound, "no brief for run %s", runID)
		return
	}
	s.writeBrief(w, ab)
}

func (s *Server) writeBrief(w http.ResponseWriter, ab *store.ArchivedBrief) {
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":       ab.RunID,
		"generated_at": ab.GeneratedAt,
		"highlights":   ab.HighlightCount,
		"modules":      ab.ModuleCount,
		"markdown":     ab.BodyMarkdown,
		"bundle":       json.RawMessage(ab.BundleJSON),
	})
}

// handleFeedback records one engagement event against an item in a brief.
// Topics, source and person are resolved from the archived bundle at capture
// time so consolidation never needs to look items up again.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RunID     string `json:"run_id"`
		StableID  string `json:"stable_id"`
		EventType string `json:"event_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.StableID == "" || req.EventType == "" {
		writeError(w, http.StatusBadRequest, "stable_id and event_type required")
		return
	}

	var (
		ab  *store.ArchivedBrief
		err error
	)
	if req.RunID != "" {
		ab, err = s.db.GetBrief(req.RunID)
	} else {
		ab, err = s.db.GetLatestBrief(s.userID)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading brief: %v", err)
		return
	}
	if ab == nil {
		writeError(w, http.StatusNotFound, "no matching brief")
		return
	}

	var b brief.Bundle
	if err := json.Unmarshal([]byte(ab.BundleJSON), &b); err != nil {
		writeError(w, http.StatusInternalServerError, "decoding archived bundle: %v", err)
		return
	}
	ri, ok := b.FindItem(req.StableID)
	if !ok {
		writeError(w, http.StatusNotFound, "item %s not in brief %s", req.StableID, ab.RunID)
		return
	}

	ev := store.FeedbackEvent{
		StableID:  req.StableID,
		EventType: req.EventType,
		Topics:    ri.Item.Topics(),
		Source:    ri.Item.Module,
		Person:    ri.Item.From,
	}
	id, err := s.db.InsertFeedback(s.userID, ev)
	if err != nil {
		writeError(w, http.StatusBadRequest, "recording feedback: %v", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "status": "ok"})
}
