// ABOUTME: JSON handlers for relationships, activities and reminders
// ABOUTME: Maps crm errors onto HTTP status codes
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/harperreed/kith/crm"
	"github.com/harperreed/kith/models"
)

func (s *Server) handleListRelationships(w http.ResponseWriter, r *http.Request) {
	var rels []*models.Relationship
	var err error
	if within := r.URL.Query().Get("dueWithin"); within != "" {
		days, convErr := strconv.Atoi(within)
		if convErr != nil {
			http.Error(w, `{"error":"dueWithin must be a number of days"}`, http.StatusBadRequest)
			return
		}
		rels, err = s.svc.Relationships.ListDue(r.Context(), time.Now().AddDate(0, 0, days))
	} else {
		rels, err = s.svc.Relationships.List(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilSlice(rels))
}

// handleCreateRelationship honours ?onConflict=open|fork; without it a
// duplicate name is a 409 carrying the suggested fork name.
func (s *Server) handleCreateRelationship(w http.ResponseWriter, r *http.Request) {
	var draft models.Relationship
	if err := decodeBody(r, &draft); err != nil {
		writeError(w, err)
		return
	}

	res := crm.ResolveNone
	switch r.URL.Query().Get("onConflict") {
	case "open":
		res = crm.ResolveOpenExisting
	case "fork":
		res = crm.ResolveFork
	}

	rel, err := s.svc.StartRelationship(r.Context(), &draft, res)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusCreated
	if res == crm.ResolveOpenExisting {
		status = http.StatusOK
	}
	writeJSON(w, status, rel)
}

func (s *Server) handleGetRelationship(w http.ResponseWriter, r *http.Request) {
	rel, err := s.svc.Relationships.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

// handleUpdateRelationship applies the JSON body as a merge patch over the
// stored record.
func (s *Server) handleUpdateRelationship(w http.ResponseWriter, r *http.Request) {
	rel, err := s.svc.Relationships.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	id := rel.ID
	if err := decodeBody(r, rel); err != nil {
		writeError(w, err)
		return
	}
	rel.ID = id

	updated, warns, err := s.svc.UpdateRelationship(r.Context(), rel)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, warned(updated, warns))
}

func (s *Server) handleDeleteRelationship(w http.ResponseWriter, r *http.Request) {
	warns, err := s.svc.DeleteRelationship(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, warned(map[string]bool{"deleted": true}, warns))
}

func (s *Server) handleRelationshipActivities(w http.ResponseWriter, r *http.Request) {
	rel, err := s.svc.Relationships.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	acts, err := s.svc.Activities.ListForRelationship(r.Context(), rel)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilSlice(acts))
}

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := crm.ActivityFilter{
		Type:            models.ActivityType(q.Get("type")),
		ContactName:     q.Get("contact"),
		IncludeArchived: q.Get("archived") == "true",
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			http.Error(w, `{"error":"limit must be a non-negative number"}`, http.StatusBadRequest)
			return
		}
		filter.Limit = n
	}
	acts, err := s.svc.Activities.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilSlice(acts))
}

func (s *Server) handleCreateActivity(w http.ResponseWriter, r *http.Request) {
	var act models.Activity
	if err := decodeBody(r, &act); err != nil {
		writeError(w, err)
		return
	}
	created, warns, err := s.svc.AddActivity(r.Context(), &act, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, warned(created, warns))
}

func (s *Server) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	act, err := s.svc.Activities.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, act)
}

func (s *Server) handleUpdateActivity(w http.ResponseWriter, r *http.Request) {
	act, err := s.svc.Activities.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	id := act.ID
	if err := decodeBody(r, act); err != nil {
		writeError(w, err)
		return
	}
	act.ID = id

	updated, warns, err := s.svc.Activities.Update(r.Context(), act)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, warned(updated, warns))
}

func (s *Server) handleDeleteActivity(w http.ResponseWriter, r *http.Request) {
	warns, err := s.svc.Activities.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, warned(map[string]bool{"deleted": true}, warns))
}

func (s *Server) handleArchiveActivity(archived bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var act *models.Activity
		var err error
		if archived {
			act, err = s.svc.Activities.Archive(r.Context(), id)
		} else {
			act, err = s.svc.Activities.Unarchive(r.Context(), id)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, act)
	}
}

func (s *Server) handleCompleteReminder(w http.ResponseWriter, r *http.Request) {
	act, warns, err := s.svc.Activities.CompleteReminder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, warned(act, warns))
}

func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	rems, err := s.svc.Reminders.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilSlice(rems))
}

func (s *Server) handleResyncReminders(w http.ResponseWriter, r *http.Request) {
	n, warns, err := s.svc.Reminders.Resync(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, warned(map[string]int{"scheduled": n}, warns))
}

func nonNilSlice[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
