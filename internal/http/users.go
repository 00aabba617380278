package httpserver

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Clark-Hu/recetas-api/internal/auth"
	"github.com/Clark-Hu/recetas-api/internal/domain"
	"github.com/Clark-Hu/recetas-api/internal/media"
	"github.com/Clark-Hu/recetas-api/internal/repository"
)

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type profileUpdateRequest struct {
	Name   *string `json:"name" validate:"omitempty,min=1,max=100"`
	Status *string `json:"status" validate:"omitempty,max=280"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role"`
	PhotoURL  string    `json:"photoUrl"`
	Status    *string   `json:"status,omitempty"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
}

type sessionResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type userListResponse struct {
	Items []userResponse `json:"items"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if !s.validateRequest(w, req) {
		return
	}

	hash, err := s.passwords.Hash(req.Password)
	if err != nil {
		s.respondStoreError(w, r, err, "register user")
		return
	}
	user, err := s.repo.Users.Create(r.Context(), repository.UserCreateParams{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			s.respondError(w, http.StatusConflict, "CONFLICT", "Email is already registered")
			return
		}
		s.respondStoreError(w, r, err, "register user")
		return
	}

	s.respondSession(w, r, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if !s.validateRequest(w, req) {
		return
	}

	user, err := s.repo.Users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password")
			return
		}
		s.respondStoreError(w, r, err, "log in")
		return
	}
	if err := s.passwords.Compare(user.PasswordHash, req.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password")
			return
		}
		s.respondStoreError(w, r, err, "log in")
		return
	}
	if user.State == domain.AccountDeactivated {
		s.respondError(w, http.StatusForbidden, "FORBIDDEN", "Account is deactivated")
		return
	}

	s.respondSession(w, r, http.StatusOK, user)
}

func (s *Server) respondSession(w http.ResponseWriter, r *http.Request, status int, user domain.User) {
	token, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		s.respondStoreError(w, r, err, "issue token")
		return
	}
	s.respondJSON(w, status, sessionResponse{Token: token, User: toUserResponse(user, true)})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)
	s.respondJSON(w, http.StatusOK, toUserResponse(user, true))
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	var req profileUpdateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	req.Name = normalizeStringPtr(req.Name)
	req.Status = normalizeStringPtr(req.Status)
	if !s.validateRequest(w, req) {
		return
	}

	updated, err := s.repo.Users.UpdateProfile(r.Context(), user.ID, repository.UserProfileUpdate{
		Name:   req.Name,
		Status: req.Status,
	})
	if err != nil {
		s.respondStoreError(w, r, err, "update profile")
		return
	}
	s.respondJSON(w, http.StatusOK, toUserResponse(updated, true))
}

func (s *Server) handleUploadPhoto(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	url, ok := s.receiveImage(w, r, "photo", media.FolderUsers)
	if !ok {
		return
	}
	updated, err := s.repo.Users.UpdateProfile(r.Context(), user.ID, repository.UserProfileUpdate{PhotoURL: &url})
	if err != nil {
		s.respondStoreError(w, r, err, "update photo")
		return
	}
	s.respondJSON(w, http.StatusOK, toUserResponse(updated, true))
}

func (s *Server) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "name query parameter is required")
		return
	}
	users, err := s.repo.Users.Search(r.Context(), name, 50)
	if err != nil {
		s.respondStoreError(w, r, err, "search users")
		return
	}
	s.respondJSON(w, http.StatusOK, toUserList(users))
}

func toUserResponse(user domain.User, private bool) userResponse {
	resp := userResponse{
		ID:        user.ID,
		Name:      user.Name,
		Role:      user.Role,
		PhotoURL:  user.PhotoURL,
		Status:    user.Status,
		State:     string(user.State),
		CreatedAt: user.CreatedAt,
	}
	if private {
		resp.Email = user.Email
	}
	return resp
}

func toUserList(users []domain.User) userListResponse {
	items := make([]userResponse, 0, len(users))
	for _, u := range users {
		items = append(items, toUserResponse(u, false))
	}
	return userListResponse{Items: items}
}
