package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"listing-leads/models"
	"listing-leads/services"
	"listing-leads/storage"
	"listing-leads/utils"
)

// Server exposes the materialized leads read-only over HTTP.
type Server struct {
	store  storage.LeadReader
	logger *utils.Logger
}

func NewServer(store storage.LeadReader, logger *utils.Logger) *Server {
	return &Server{store: store, logger: logger}
}

// Router returns the configured routes.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.HandleFunc("/tenants/{tenant}/leads", s.handleListLeads).Methods("GET")
	r.HandleFunc("/tenants/{tenant}/leads.xlsx", s.handleExportLeads).Methods("GET")
	r.HandleFunc("/tenants/{tenant}/leads/{id}", s.handleGetLead).Methods("GET")
	r.HandleFunc("/tenants/{tenant}/duplicate-groups", s.handleListGroups).Methods("GET")
	r.HandleFunc("/tenants/{tenant}/listings/{portal}/{external_id}/prices", s.handlePriceHistory).Methods("GET")
	return r
}

type leadView struct {
	ID                   string       `json:"id"`
	UniqueKey            string       `json:"unique_key"`
	Portal               string       `json:"portal"`
	ExternalID           string       `json:"external_id"`
	URL                  string       `json:"url"`
	Title                string       `json:"title"`
	Description          string       `json:"description,omitempty"`
	Location             string       `json:"location"`
	Zone                 string       `json:"zone"`
	PropertyType         string       `json:"property_type"`
	SellerName           string       `json:"seller_name,omitempty"`
	Phone                string       `json:"phone,omitempty"`
	Email                string       `json:"email,omitempty"`
	Price                *float64     `json:"price"`
	Area                 *float64     `json:"area"`
	PricePerArea         *float64     `json:"price_per_area"`
	Rooms                *int         `json:"rooms"`
	Baths                *int         `json:"baths"`
	PhotoCount           int          `json:"photo_count"`
	EsParticular         bool         `json:"es_particular"`
	PermiteInmobiliarias bool         `json:"permite_inmobiliarias"`
	SellerReason         string       `json:"seller_reason"`
	Score                float64      `json:"score"`
	Estado               string       `json:"estado"`
	AssignedTo           string       `json:"assigned_to,omitempty"`
	FirstSeenAt          time.Time    `json:"first_seen_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
	Sources              []sourceView `json:"sources"`
}

type sourceView struct {
	Portal     string    `json:"portal"`
	ExternalID string    `json:"external_id"`
	URL        string    `json:"url"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

type groupView struct {
	GroupID     string   `json:"group_id"`
	MatchType   string   `json:"match_type"`
	LeadIDs     []string `json:"lead_ids"`
	Portals     []string `json:"portals"`
	MemberCount int      `json:"member_count"`
	PortalCount int      `json:"portal_count"`
}

type priceView struct {
	Price      float64   `json:"price"`
	ChangePct  *float64  `json:"change_pct"`
	ObservedAt time.Time `json:"observed_at"`
}

func toLeadView(l *models.Lead) leadView {
	v := leadView{
		ID: l.ID, UniqueKey: l.UniqueKey, Portal: l.Portal, ExternalID: l.ExternalID, URL: l.URL,
		Title: l.Title, Description: l.Description, Location: l.Location, Zone: l.Zone,
		PropertyType: l.PropertyType, SellerName: l.SellerName, Phone: l.Phone, Email: l.Email,
		Price: l.Price, Area: l.Area, PricePerArea: l.PricePerArea, Rooms: l.Rooms, Baths: l.Baths,
		PhotoCount: l.PhotoCount, EsParticular: l.EsParticular, PermiteInmobiliarias: l.PermiteInmo,
		SellerReason: l.SellerReason, Score: l.Score, Estado: l.Workflow.Estado,
		AssignedTo: l.Workflow.AssignedTo, FirstSeenAt: l.FirstSeenAt, UpdatedAt: l.UpdatedAt,
		Sources: make([]sourceView, 0, len(l.Sources)),
	}
	for _, s := range l.Sources {
		v.Sources = append(v.Sources, sourceView{Portal: s.Portal, ExternalID: s.ExternalID, URL: s.URL, LastSeenAt: s.LastSeenAt})
	}
	return v
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	tenant := mux.Vars(r)["tenant"]
	contactable, _ := strconv.ParseBool(r.URL.Query().Get("contactable"))

	leads, err := s.store.ListLeads(r.Context(), tenant, contactable)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 && limit < len(leads) {
		leads = leads[:limit]
	}

	views := make([]leadView, 0, len(leads))
	for _, l := range leads {
		views = append(views, toLeadView(l))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tenant": tenant, "count": len(views), "leads": views})
}

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	lead, err := s.store.GetLead(r.Context(), vars["tenant"], vars["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeadView(lead))
}

func (s *Server) handleExportLeads(w http.ResponseWriter, r *http.Request) {
	tenant := mux.Vars(r)["tenant"]
	leads, err := s.store.ListLeads(r.Context(), tenant, true)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	data, err := storage.LeadsWorkbook(leads)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="leads-`+tenant+`.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	tenant := mux.Vars(r)["tenant"]
	groups, err := s.store.ListGroups(r.Context(), tenant)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	views := make([]groupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, groupView{
			GroupID: g.GroupID, MatchType: string(g.MatchType), LeadIDs: g.LeadIDs,
			Portals: g.Portals, MemberCount: g.MemberCount, PortalCount: g.PortalCount,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tenant": tenant, "count": len(views), "groups": views})
}

func (s *Server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ref := models.ListingRef{Portal: vars["portal"], ExternalID: vars["external_id"]}
	obs, err := s.store.PriceHistory(r.Context(), vars["tenant"], ref)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	series := services.PriceSeries(obs)
	views := make([]priceView, 0, len(series))
	for _, c := range series {
		views = append(views, priceView{Price: c.Current, ChangePct: c.ChangePct, ObservedAt: c.ObservedAt})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"portal": ref.Portal, "external_id": ref.ExternalID, "observations": views,
	})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	s.logger.Error("[api] %s %s: %v", r.Method, r.URL.Path, err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
