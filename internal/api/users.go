package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aaal/envanter/internal/audit"
	"github.com/aaal/envanter/internal/auth"
	"github.com/aaal/envanter/internal/model"
	"github.com/aaal/envanter/internal/store"
)

// UsersHandler handles user management endpoints (admin only).
type UsersHandler struct {
	DB         *sql.DB
	BcryptCost int
	Audit      *audit.Recorder
}

type userRequest struct {
	ID        string     `json:"id"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Email     string     `json:"email"`
	Password  string     `json:"password"`
	Role      model.Role `json:"role"`
}

func (req *userRequest) trim() {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := store.ListUsers(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list users", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	jsonResponse(w, http.StatusOK, map[string]any{"users": users})
}

// Create handles POST /api/users.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.trim()

	if req.FirstName == "" || req.LastName == "" || req.Password == "" || req.Role == "" {
		jsonError(w, http.StatusBadRequest, "first name, last name, password and role required")
		return
	}
	if !req.Role.Valid() {
		jsonError(w, http.StatusBadRequest, "invalid role")
		return
	}
	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := store.GetUserByName(r.Context(), h.DB, req.FirstName, req.LastName)
	if err != nil {
		slog.Error("failed to look up user", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	if existing != nil {
		jsonError(w, http.StatusBadRequest, "a user with this name already exists")
		return
	}
	if !h.emailFree(w, r, req.Email, "") {
		return
	}

	hash, err := auth.HashPassword(req.Password, h.BcryptCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user, err := store.CreateUser(r.Context(), h.DB, &model.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
	})
	if err != nil {
		slog.Error("failed to create user", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	actor := actorFrom(r.Context())
	logActivity(r, h.Audit, model.ActionUserRegister, actor, "created user "+user.DisplayName(),
		map[string]any{"targetUserId": user.ID, "role": string(user.Role)})
	slog.Info("user created", "user", actor.Name, "new_user", user.DisplayName(), "role", user.Role)
	jsonResponse(w, http.StatusOK, map[string]any{"message": "user created", "user": user})
}

// Update handles PUT /api/users. Empty fields are left unchanged.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.trim()

	if req.ID == "" {
		jsonError(w, http.StatusBadRequest, "user id required")
		return
	}
	if req.Role != "" && !req.Role.Valid() {
		jsonError(w, http.StatusBadRequest, "invalid role")
		return
	}

	target, err := store.GetUser(r.Context(), h.DB, req.ID)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update user")
		return
	}
	if target == nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}
	if !h.emailFree(w, r, req.Email, target.ID) {
		return
	}

	upd := store.UserUpdate{FirstName: req.FirstName, LastName: req.LastName, Email: req.Email, Role: req.Role}
	if req.Password != "" {
		if err := model.ValidatePassword(req.Password); err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		upd.PasswordHash, err = auth.HashPassword(req.Password, h.BcryptCost)
		if err != nil {
			jsonError(w, http.StatusInternalServerError, "failed to hash password")
			return
		}
	}

	user, err := store.UpdateUser(r.Context(), h.DB, target.ID, upd)
	if err != nil {
		slog.Error("failed to update user", "error", err)
		jsonError(w, http.StatusBadRequest, "failed to update user")
		return
	}

	actor := actorFrom(r.Context())
	logActivity(r, h.Audit, model.ActionUserUpdate, actor, "updated user "+user.DisplayName(),
		map[string]any{"targetUserId": user.ID, "role": string(user.Role)})
	slog.Info("user updated", "user", actor.Name, "target_user", user.DisplayName(), "role", user.Role)
	jsonResponse(w, http.StatusOK, map[string]any{"message": "user updated", "user": user})
}

// Delete handles DELETE /api/users?id=.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, "user id required")
		return
	}

	actor := actorFrom(r.Context())
	if id == actor.ID {
		jsonError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	target, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}
	if target == nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	if _, err := store.DeleteUser(r.Context(), h.DB, id); err != nil {
		slog.Error("failed to delete user", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	logActivity(r, h.Audit, model.ActionUserDelete, actor, "deleted user "+target.DisplayName(),
		map[string]any{"targetUserId": target.ID})
	slog.Info("user deleted", "user", actor.Name, "deleted_user", target.DisplayName())
	jsonResponse(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

// emailFree writes a 400 and returns false if email belongs to a user other
// than selfID.
func (h *UsersHandler) emailFree(w http.ResponseWriter, r *http.Request, email, selfID string) bool {
	if email == "" {
		return true
	}
	owner, err := store.GetUserByEmail(r.Context(), h.DB, email)
	if err != nil {
		slog.Error("failed to look up email", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return false
	}
	if owner != nil && owner.ID != selfID {
		jsonError(w, http.StatusBadRequest, "email already in use")
		return false
	}
	return true
}
