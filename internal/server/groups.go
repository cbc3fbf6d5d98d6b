package server

import (
	"net/http"
	"time"

	"demo-ingest/internal/constants"
	"demo-ingest/internal/domain"

	"github.com/go-chi/chi/v5"
)

type createGroupRequest struct {
	Name string `json:"name" validate:"required,max=128"`
}

type addMembersRequest struct {
	SteamIDs []string `json:"steam_ids" validate:"required,min=1,max=500,dive,required,max=32"`
}

type groupResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Members   []string  `json:"members,omitempty"`
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decodeJSON(w, r, constants.MaxCallbackBodyBytes, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.validator.ValidateStruct(req, ""); err != nil {
		respondError(w, r, err)
		return
	}

	g, err := s.groups.Create(r.Context(), req.Name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, groupResponse{ID: g.ID, Name: g.Name, CreatedAt: g.CreatedAt})
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	g, members, err := s.groups.Get(r.Context(), chi.URLParam(r, "groupId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, groupResponse{ID: g.ID, Name: g.Name, CreatedAt: g.CreatedAt, Members: members})
}

func (s *Server) handleAddMembers(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupId")

	var req addMembersRequest
	if err := decodeJSON(w, r, constants.MaxCallbackBodyBytes, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.validator.ValidateStruct(req, ""); err != nil {
		respondError(w, r, err)
		return
	}

	added, err := s.groups.AddMembers(r.Context(), groupID, req.SteamIDs)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "group_id": groupID, "added": added})
}

type leaderboardRow struct {
	Position      int     `json:"position"`
	SteamID       string  `json:"steam_id"`
	Value         float64 `json:"value"`
	MatchesPlayed int     `json:"matches_played"`
}

type leaderboardResponse struct {
	GroupID      string           `json:"group_id"`
	Type         string           `json:"type"`
	Window       string           `json:"window"`
	Generation   string           `json:"generation,omitempty"`
	CalculatedAt *time.Time       `json:"calculated_at,omitempty"`
	Entries      []leaderboardRow `json:"entries"`
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupId")
	lt := domain.LeaderboardType(chi.URLParam(r, "type"))

	window := domain.Window7Days
	if q := r.URL.Query().Get("window"); q != "" {
		window = domain.TimeWindow(q)
	}
	if !lt.Valid() {
		respondError(w, r, badRequest("unknown leaderboard type %q", lt))
		return
	}
	if !window.Valid() {
		respondError(w, r, badRequest("window must be 7d or 30d, got %q", window))
		return
	}

	entries, err := s.leaderboards.Leaderboard(r.Context(), groupID, lt, window)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := leaderboardResponse{
		GroupID: groupID,
		Type:    string(lt),
		Window:  string(window),
		Entries: make([]leaderboardRow, len(entries)),
	}
	for i, e := range entries {
		resp.Entries[i] = leaderboardRow{
			Position:      e.Position,
			SteamID:       e.SteamID,
			Value:         e.Value,
			MatchesPlayed: e.MatchesPlayed,
		}
	}
	if len(entries) > 0 {
		resp.Generation = entries[0].Generation
		resp.CalculatedAt = &entries[0].CalculatedAt
	}
	respondJSON(w, http.StatusOK, resp)
}
