package handlers

import (
	"context"
	"net/http"

	"github.com/kevinaaaquil/devcamper/apperror"
	"github.com/kevinaaaquil/devcamper/models"
	"github.com/kevinaaaquil/devcamper/query"
	"github.com/kevinaaaquil/devcamper/service"
	"github.com/kevinaaaquil/devcamper/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserStore is what the admin user endpoints need.
type UserStore interface {
	query.Source
	UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	UpdateUser(ctx context.Context, id primitive.ObjectID, upd store.UserUpdate) (*models.User, error)
	DeleteUser(ctx context.Context, id primitive.ObjectID) (bool, error)
}

// UsersHandler serves admin user management.
type UsersHandler struct {
	DB   UserStore
	Auth *service.AuthService
}

type createUserRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"omitempty,oneof=user publisher admin"`
}

type updateUserRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1"`
	Email *string `json:"email" validate:"omitempty,email"`
	Role  *string `json:"role" validate:"omitempty,oneof=user publisher admin"`
}

func userNotFound(id primitive.ObjectID) error {
	return apperror.NotFound("User not found with id of " + id.Hex())
}

func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	env, err := query.Run(r.Context(), h.DB, store.UserResource, r.URL.Query())
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := objectID(r, "id")
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	user, err := h.DB.UserByID(r.Context(), id)
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	if user == nil {
		apperror.Write(w, r, userNotFound(id))
		return
	}
	writeData(w, http.StatusOK, user)
}

func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := readJSON(w, r, &req); err != nil {
		apperror.Write(w, r, err)
		return
	}
	user, err := h.Auth.CreateUser(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, user)
}

// Update changes profile fields and role. Passwords only change through the auth endpoints.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := objectID(r, "id")
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	var req updateUserRequest
	if err := readJSON(w, r, &req); err != nil {
		apperror.Write(w, r, err)
		return
	}
	user, err := h.DB.UpdateUser(r.Context(), id, store.UserUpdate{Name: req.Name, Email: req.Email, Role: req.Role})
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	if user == nil {
		apperror.Write(w, r, userNotFound(id))
		return
	}
	writeData(w, http.StatusOK, user)
}

// Delete removes the user named in the path.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := objectID(r, "id")
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	deleted, err := h.DB.DeleteUser(r.Context(), id)
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	if !deleted {
		apperror.Write(w, r, userNotFound(id))
		return
	}
	writeData(w, http.StatusOK, struct{}{})
}
