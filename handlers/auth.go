package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kevinaaaquil/devcamper/apperror"
	"github.com/kevinaaaquil/devcamper/middleware"
	"github.com/kevinaaaquil/devcamper/models"
	"github.com/kevinaaaquil/devcamper/service"
)

const tokenCookie = "token"

type AuthHandler struct {
	Auth         *service.AuthService
	CookieExpire time.Duration
	SecureCookie bool
}

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"omitempty,oneof=user publisher admin"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateDetailsRequest struct {
	Name  string `json:"name"`
	Email string `json:"email" validate:"omitempty,email"`
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=6"`
}

type tokenResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

// sendToken returns the token in the body and as an HttpOnly cookie.
func (h *AuthHandler) sendToken(w http.ResponseWriter, status int, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.CookieExpire),
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, status, tokenResponse{Success: true, Token: token})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := readJSON(w, r, &req); err != nil {
		apperror.Write(w, r, err)
		return
	}
	_, token, err := h.Auth.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	h.sendToken(w, http.StatusOK, token)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(w, r, &req); err != nil {
		apperror.Write(w, r, err)
		return
	}
	_, token, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	h.sendToken(w, http.StatusOK, token)
}

// Logout overwrites the token cookie with a short-lived placeholder.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    "none",
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Second),
		HttpOnly: true,
		Secure:   h.SecureCookie,
	})
	writeData(w, http.StatusOK, struct{}{})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		apperror.Write(w, r, apperror.Unauthorized("Not authorized to access this route"))
		return
	}
	fresh, err := h.Auth.Me(r.Context(), user.ID)
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, fresh)
}

func (h *AuthHandler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	var req updateDetailsRequest
	if err := readJSON(w, r, &req); err != nil {
		apperror.Write(w, r, err)
		return
	}
	updated, err := h.Auth.UpdateDetails(r.Context(), user.ID, req.Name, req.Email)
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, updated)
}

func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	var req updatePasswordRequest
	if err := readJSON(w, r, &req); err != nil {
		apperror.Write(w, r, err)
		return
	}
	_, token, err := h.Auth.UpdatePassword(r.Context(), user.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	h.sendToken(w, http.StatusOK, token)
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := readJSON(w, r, &req); err != nil {
		apperror.Write(w, r, err)
		return
	}
	base := baseURL(r)
	err := h.Auth.ForgotPassword(r.Context(), req.Email, func(token string) string {
		return base + "/api/v1/auth/resetpassword/" + token
	})
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Email sent")
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := readJSON(w, r, &req); err != nil {
		apperror.Write(w, r, err)
		return
	}
	_, token, err := h.Auth.ResetPassword(r.Context(), chi.URLParam(r, "resettoken"), req.Password)
	if err != nil {
		apperror.Write(w, r, err)
		return
	}
	h.sendToken(w, http.StatusOK, token)
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	return scheme + "://" + r.Host
}

// currentUser is set by Protect on every route that reads it.
func currentUser(r *http.Request) *models.User {
	u, _ := middleware.UserFromContext(r.Context())
	return u
}
