// Package httpapi serves conversation history, the contact list, presence
// and development logins over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/mahaj/dupahar-dm/pkg/auth"
	"github.com/mahaj/dupahar-dm/pkg/conversation"
	"github.com/mahaj/dupahar-dm/pkg/errors"
	"github.com/mahaj/dupahar-dm/pkg/model"
)

type Pager interface {
	Page(ctx context.Context, requester, counterpart string, page, limit int) ([]model.Message, error)
}

type ContactLister interface {
	List(ctx context.Context, requester string) ([]model.Contact, error)
}

type ReadMarker interface {
	MarkRead(ctx context.Context, reader, counterpart string) (int, error)
}

// OnlineLister returns the identities currently online across gateways.
type OnlineLister interface {
	OnlineUsers(ctx context.Context) ([]string, error)
}

type TokenIssuer interface {
	GenerateToken(userID string) (string, error)
}

type UserFinder interface {
	FindByID(ctx context.Context, id string) (model.User, error)
}

type Server struct {
	log      *slog.Logger
	auth     Authenticator
	tokens   TokenIssuer
	users    UserFinder
	pager    Pager
	contacts ContactLister
	reads    ReadMarker
	online   OnlineLister
}

// NewServer builds the API. online may be nil, in which case
// /presence/online answers 503.
func NewServer(log *slog.Logger, authenticator Authenticator, tokens TokenIssuer, users UserFinder,
	pager Pager, contacts ContactLister, reads ReadMarker, online OnlineLister) *Server {
	return &Server{
		log:      log,
		auth:     authenticator,
		tokens:   tokens,
		users:    users,
		pager:    pager,
		contacts: contacts,
		reads:    reads,
		online:   online,
	}
}

// Register mounts every route on mux.
func (s *Server) Register(mux *http.ServeMux) {
	protected := func(h http.HandlerFunc) http.Handler {
		return CORSMiddleware(AuthMiddleware(s.log, s.auth, h))
	}

	// Public endpoint
	mux.Handle("/login", CORSMiddleware(http.HandlerFunc(s.login)))

	mux.Handle("/conversations/{counterpartId}/messages", protected(s.history))
	mux.Handle("/conversations/{counterpartId}/read", protected(s.markRead))
	mux.Handle("/users", protected(s.listUsers))
	mux.Handle("/presence/online", protected(s.onlineUsers))
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	identity, _ := auth.IdentityFrom(r.Context())

	page, err := intParam(r, "page", conversation.DefaultPage)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := intParam(r, "limit", conversation.DefaultLimit)
	if err != nil {
		writeError(w, err)
		return
	}

	messages, err := s.pager.Page(r.Context(), identity, r.PathValue("counterpartId"), page, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if messages == nil {
		messages = []model.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

type readResponse struct {
	Updated int `json:"updated"`
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	identity, _ := auth.IdentityFrom(r.Context())

	updated, err := s.reads.MarkRead(r.Context(), identity, r.PathValue("counterpartId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, readResponse{Updated: updated})
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	identity, _ := auth.IdentityFrom(r.Context())

	contacts, err := s.contacts.List(r.Context(), identity)
	if err != nil {
		writeError(w, err)
		return
	}
	if contacts == nil {
		contacts = []model.Contact{}
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (s *Server) onlineUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.online == nil {
		http.Error(w, "Presence mirror disabled", http.StatusServiceUnavailable)
		return
	}

	users, err := s.online.OnlineUsers(r.Context())
	if err != nil {
		s.log.Error("Failed to fetch presence", "error", err)
		http.Error(w, "Failed to fetch presence", http.StatusInternalServerError)
		return
	}
	if users == nil {
		users = []string{}
	}
	writeJSON(w, http.StatusOK, users)
}

type LoginRequest struct {
	UserID string `json:"user_id"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

// login issues a development token for an existing user; there is no
// password.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	if _, err := s.users.FindByID(r.Context(), req.UserID); err != nil {
		if errors.IsNotFound(err) {
			writeError(w, errors.ErrUnknownIdentity)
			return
		}
		writeError(w, err)
		return
	}

	token, err := s.tokens.GenerateToken(req.UserID)
	if err != nil {
		s.log.Error("Failed to generate token", "user", req.UserID, "error", err)
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token})
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.NewValidationError(name, "must be a number")
	}
	return n, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps auth failures to 401, validation to 400 and anything else
// to 500 without leaking driver details.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.IsAuth(err):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
