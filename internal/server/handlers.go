package server

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/store"
)

// exportHeader is the fixed column order of CSV exports.
var exportHeader = []string{
	"Business Name", "Category", "State", "City",
	"Website", "Email", "Phone", "Domain", "Score",
}

// filterFromQuery builds a LeadFilter from request query parameters.
// Malformed numeric values are treated as absent.
func filterFromQuery(q url.Values) store.LeadFilter {
	f := store.LeadFilter{
		Query: q.Get("q"),
		Sort:  q.Get("sort"),
	}
	f.StateID, _ = strconv.ParseInt(q.Get("state"), 10, 64)
	f.CityID, _ = strconv.ParseInt(q.Get("city"), 10, 64)
	f.CategoryID, _ = strconv.ParseInt(q.Get("category"), 10, 64)
	f.HasEmail, _ = strconv.ParseBool(q.Get("has_email"))
	f.HasWebsite, _ = strconv.ParseBool(q.Get("has_website"))
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.PageSize, _ = strconv.Atoi(q.Get("page_size"))
	f.Clamp()
	return f
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	filter := filterFromQuery(r.URL.Query())
	page, err := s.store.ListLeads(r.Context(), filter)
	if err != nil {
		zap.L().Error("server: list leads", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list leads failed")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleExportLeads(w http.ResponseWriter, r *http.Request) {
	filter := filterFromQuery(r.URL.Query())
	leads, err := s.store.ExportLeads(r.Context(), filter, store.ExportLimit)
	if err != nil {
		zap.L().Error("server: export leads", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="leads_export.csv"`)

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		zap.L().Error("server: write export header", zap.Error(err))
		return
	}
	for _, lead := range leads {
		record := []string{
			lead.BusinessName,
			lead.CategoryName,
			lead.StateName,
			lead.CityName,
			lead.Website,
			lead.Email,
			lead.Phone,
			lead.Domain,
			strconv.Itoa(lead.QualityScore),
		}
		if err := cw.Write(record); err != nil {
			zap.L().Error("server: write export row", zap.Error(err))
			return
		}
	}
	cw.Flush()
}

func (s *Server) handleListSavedViews(w http.ResponseWriter, r *http.Request) {
	views, err := s.store.ListSavedViews(r.Context(), 100)
	if err != nil {
		zap.L().Error("server: list saved views", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list saved views failed")
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCreateSavedView(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string            `json:"name"`
		Filters map[string]string `json:"filters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	view, err := s.store.CreateSavedView(r.Context(), req.Name, req.Filters)
	if err != nil {
		zap.L().Error("server: create saved view", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "create saved view failed")
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func leadIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (s *Server) handleListLeadTags(w http.ResponseWriter, r *http.Request) {
	id, ok := leadIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lead id")
		return
	}
	tags, err := s.store.ListLeadTags(r.Context(), id)
	if err != nil {
		zap.L().Error("server: list lead tags", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list tags failed")
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (s *Server) handleTagLead(w http.ResponseWriter, r *http.Request) {
	id, ok := leadIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lead id")
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "tag name is required")
		return
	}
	tag, err := s.store.GetOrCreateTag(r.Context(), req.Name)
	if err != nil {
		zap.L().Error("server: create tag", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "tag failed")
		return
	}
	if err := s.store.TagLead(r.Context(), id, tag.ID); err != nil {
		zap.L().Error("server: tag lead", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "tag failed")
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

func (s *Server) handleUntagLead(w http.ResponseWriter, r *http.Request) {
	id, ok := leadIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lead id")
		return
	}
	tag := chi.URLParam(r, "tag")
	if tag == "" {
		writeError(w, http.StatusBadRequest, "tag name is required")
		return
	}
	if err := s.store.UntagLead(r.Context(), id, tag); err != nil {
		zap.L().Error("server: untag lead", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "untag failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		zap.L().Error("server: stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "stats failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListStates(w http.ResponseWriter, r *http.Request) {
	states, err := s.store.ListStates(r.Context())
	if err != nil {
		zap.L().Error("server: list states", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list states failed")
		return
	}
	writeJSON(w, http.StatusOK, states)
}

func (s *Server) handleListCities(w http.ResponseWriter, r *http.Request) {
	stateID, _ := strconv.ParseInt(r.URL.Query().Get("state"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 1000 {
		limit = 500
	}
	cities, err := s.store.ListCities(r.Context(), stateID, limit)
	if err != nil {
		zap.L().Error("server: list cities", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list cities failed")
		return
	}
	writeJSON(w, http.StatusOK, cities)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.store.ListCategories(r.Context())
	if err != nil {
		zap.L().Error("server: list categories", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list categories failed")
		return
	}
	writeJSON(w, http.StatusOK, cats)
}
