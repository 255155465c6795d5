// matchmaker/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/apperr"
	"github.com/Ftotnem/GO-MATCHMAKER/matchmaker/service"
	"github.com/Ftotnem/GO-MATCHMAKER/shared/api"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const requestTimeout = 5 * time.Second

// MatchmakerAPIHandlers exposes the matchmaking use cases over HTTP.
type MatchmakerAPIHandlers struct {
	Service *service.MatchmakingService
}

func NewMatchmakerAPIHandlers(s *service.MatchmakingService) *MatchmakerAPIHandlers {
	return &MatchmakerAPIHandlers{Service: s}
}

// --- Request/Response DTOs ---

// MemberRequest is the body of every call that acts on behalf of a member.
type MemberRequest struct {
	Username string `json:"username"`
}

type SearchRequest struct {
	Username string `json:"username"`
	Region   string `json:"region"`
	Mode     string `json:"mode"`
}

// JoinLobbyRequest seats the member in a given lobby. Role is optional.
type JoinLobbyRequest struct {
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
}

type VoteRequest struct {
	Username string `json:"username"`
	Map      string `json:"map"`
}

type InviteRequest struct {
	Username string `json:"username"`
	Invitee  string `json:"invitee"`
}

type ChatRequest struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

type MoveRequest struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}

type MapsResponse struct {
	Maps []string `json:"maps"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// writeServiceError maps the error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		api.WriteFieldError(w, ve.Field, ve.Error())
	case errors.Is(err, apperr.ErrNotFound):
		api.WriteNotFound(w, err.Error())
	case errors.Is(err, apperr.ErrForbidden):
		api.WriteForbidden(w, err.Error())
	case errors.Is(err, apperr.ErrConflict):
		api.WriteConflict(w, err.Error())
	default:
		log.WithFields(log.Fields{"method": r.Method, "path": r.URL.Path}).Errorf("Request failed: %v", err)
		api.WriteInternalServerError(w, "Internal server error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		api.WriteBadRequest(w, "Invalid request body")
		return false
	}
	return true
}

func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), requestTimeout)
}

// --- Lobby handlers ---

// SearchLobbyHandler seats the member, or their team, in a fitting lobby.
// POST /lobbies/search
func (h *MatchmakerAPIHandlers) SearchLobbyHandler(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	result, err := h.Service.FindLobby(ctx, req.Username, req.Region, req.Mode)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, result)
}

// JoinLobbyHandler seats the member in the lobby named by the path.
// POST /lobbies/{id}/join
func (h *MatchmakerAPIHandlers) JoinLobbyHandler(w http.ResponseWriter, r *http.Request) {
	var req JoinLobbyRequest
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	view, err := h.Service.JoinLobby(ctx, req.Username, mux.Vars(r)["id"], req.Role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, view)
}

// memberAction runs a use case that takes only the member's name.
func (h *MatchmakerAPIHandlers) memberAction(message string, action func(context.Context, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MemberRequest
		if !decode(w, r, &req) {
			return
		}
		ctx, cancel := requestContext(r)
		defer cancel()

		if err := action(ctx, req.Username); err != nil {
			writeServiceError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, MessageResponse{Message: message})
	}
}

// POST /lobbies/leave
func (h *MatchmakerAPIHandlers) LeaveLobbyHandler(w http.ResponseWriter, r *http.Request) {
	h.memberAction("Left lobby", h.Service.Leave)(w, r)
}

// POST /lobbies/ready
func (h *MatchmakerAPIHandlers) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	h.memberAction("Marked ready", h.Service.Ready)(w, r)
}

// VoteHandler records a map vote.
// POST /lobbies/vote
func (h *MatchmakerAPIHandlers) VoteHandler(w http.ResponseWriter, r *http.Request) {
	var req VoteRequest
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	if err := h.Service.Vote(ctx, req.Username, req.Map); err != nil {
		writeServiceError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Vote recorded"})
}

// MoveHandler changes the member's role.
// POST /lobbies/move
func (h *MatchmakerAPIHandlers) MoveHandler(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	if err := h.Service.Move(ctx, req.Username, req.Role); err != nil {
		writeServiceError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Role changed"})
}

// InviteHandler invites another user into the member's lobby.
// POST /lobbies/invite
func (h *MatchmakerAPIHandlers) InviteHandler(w http.ResponseWriter, r *http.Request) {
	var req InviteRequest
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	if err := h.Service.Invite(ctx, req.Username, req.Invitee); err != nil {
		writeServiceError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Invite sent"})
}

// ChatHandler posts a message to the member's lobby chat.
// POST /lobbies/chat
func (h *MatchmakerAPIHandlers) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	if err := h.Service.SendToChat(ctx, req.Username, req.Message); err != nil {
		writeServiceError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Message sent"})
}

// GET /lobbies/{id}
func (h *MatchmakerAPIHandlers) GetLobbyHandler(w http.ResponseWriter, r *http.Request) {
	view, err := h.Service.Sync(mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, view)
}

// GET /lobbies/{id}/captains
func (h *MatchmakerAPIHandlers) GetCaptainsHandler(w http.ResponseWriter, r *http.Request) {
	captains, err := h.Service.Captains(mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, captains)
}

// GET /lobbies/{id}/players/count
func (h *MatchmakerAPIHandlers) GetLobbyPlayersCountHandler(w http.ResponseWriter, r *http.Request) {
	count, err := h.Service.LobbyPlayersCount(mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, CountResponse{Count: int64(count)})
}

// GET /lobbies/count
func (h *MatchmakerAPIHandlers) GetLobbyCountHandler(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, CountResponse{Count: int64(h.Service.LobbyCount())})
}

// GET /players/count
func (h *MatchmakerAPIHandlers) GetPlayersCountHandler(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, CountResponse{Count: h.Service.PlayersCount()})
}

// GET /maps
func (h *MatchmakerAPIHandlers) GetMapsHandler(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, MapsResponse{Maps: h.Service.Maps()})
}

// --- Team handlers ---

// CreateTeamHandler makes the member captain of a new team.
// POST /teams
func (h *MatchmakerAPIHandlers) CreateTeamHandler(w http.ResponseWriter, r *http.Request) {
	var req MemberRequest
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	view, err := h.Service.CreateTeam(ctx, req.Username)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, view)
}

func teamID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("team", apperr.CauseInvalidFormat)
	}
	return id, nil
}

// POST /teams/{id}/join
func (h *MatchmakerAPIHandlers) JoinTeamHandler(w http.ResponseWriter, r *http.Request) {
	id, err := teamID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req MemberRequest
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()

	view, err := h.Service.JoinTeam(ctx, req.Username, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, view)
}

// POST /teams/leave
func (h *MatchmakerAPIHandlers) LeaveTeamHandler(w http.ResponseWriter, r *http.Request) {
	h.memberAction("Left team", h.Service.LeaveTeam)(w, r)
}

// GET /teams/{id}
func (h *MatchmakerAPIHandlers) GetTeamHandler(w http.ResponseWriter, r *http.Request) {
	id, err := teamID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	view, err := h.Service.Team(id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, view)
}

// RegisterRoutes registers all API endpoints for the matchmaker.
// Fixed paths come before their {id} siblings.
func (h *MatchmakerAPIHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/lobbies/search", h.SearchLobbyHandler).Methods("POST")
	router.HandleFunc("/lobbies/leave", h.LeaveLobbyHandler).Methods("POST")
	router.HandleFunc("/lobbies/ready", h.ReadyHandler).Methods("POST")
	router.HandleFunc("/lobbies/vote", h.VoteHandler).Methods("POST")
	router.HandleFunc("/lobbies/move", h.MoveHandler).Methods("POST")
	router.HandleFunc("/lobbies/invite", h.InviteHandler).Methods("POST")
	router.HandleFunc("/lobbies/chat", h.ChatHandler).Methods("POST")
	router.HandleFunc("/lobbies/count", h.GetLobbyCountHandler).Methods("GET")
	router.HandleFunc("/lobbies/{id}", h.GetLobbyHandler).Methods("GET")
	router.HandleFunc("/lobbies/{id}/join", h.JoinLobbyHandler).Methods("POST")
	router.HandleFunc("/lobbies/{id}/captains", h.GetCaptainsHandler).Methods("GET")
	router.HandleFunc("/lobbies/{id}/players/count", h.GetLobbyPlayersCountHandler).Methods("GET")

	router.HandleFunc("/players/count", h.GetPlayersCountHandler).Methods("GET")
	router.HandleFunc("/maps", h.GetMapsHandler).Methods("GET")

	router.HandleFunc("/teams", h.CreateTeamHandler).Methods("POST")
	router.HandleFunc("/teams/leave", h.LeaveTeamHandler).Methods("POST")
	router.HandleFunc("/teams/{id}", h.GetTeamHandler).Methods("GET")
	router.HandleFunc("/teams/{id}/join", h.JoinTeamHandler).Methods("POST")
}
