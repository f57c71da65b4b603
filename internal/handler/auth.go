package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"tailorshop/internal/model"
	"tailorshop/internal/mw"
	"tailorshop/internal/service"
	"tailorshop/internal/worker"
)

type loginRequest struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

type loginResponse struct {
	UserID string     `json:"userId"`
	Role   model.Role `json:"role"`
	Token  string     `json:"token"`
}

// LoginHandler checks credentials, issues a token and starts the viewer's
// live order session. role is optional; when given it must match the account.
func LoginHandler(authSvc *service.AuthService, hub *worker.SessionHub, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}

		acc, err := authSvc.Authenticate(r.Context(), req.Email, req.Password, req.Role)
		if err != nil {
			writeAuthError(w, err, "login")
			return
		}

		token, err := mw.NewToken(secret, acc.ID, acc.Role)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "token generation failed")
			return
		}
		if _, err := hub.Open(acc.ID, acc.Role); err != nil {
			slog.Error("failed to open session", "viewer", acc.ID, "error", err)
		}

		w.Header().Set("Authorization", "Bearer "+token)
		writeJSON(w, http.StatusOK, loginResponse{UserID: acc.ID, Role: acc.Role, Token: token})
	}
}

func LogoutHandler(hub *worker.SessionHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hub.Close(mw.UserFrom(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	}
}

type resetRequest struct {
	Email string `json:"email"`
}

type passwordResetter interface {
	RequestPasswordReset(ctx context.Context, email string) error
}

const resetAccepted = "If an account exists for this email, a password reset link has been sent. It is valid for one hour."

// PasswordResetHandler starts a reset. The answer is the same whether or
// not the account exists; the token is only ever mailed.
func PasswordResetHandler(resets passwordResetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}

		err := resets.RequestPasswordReset(r.Context(), req.Email)
		switch {
		case errors.Is(err, service.ErrInvalidEmail):
			writeAuthError(w, err, "password reset")
			return
		case err != nil && !errors.Is(err, service.ErrAccountNotFound):
			slog.Error("password reset failed", "error", err)
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"message": resetAccepted})
	}
}

type resetConfirmRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func PasswordResetConfirmHandler(authSvc *service.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetConfirmRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}

		if err := authSvc.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
			writeAuthError(w, err, "password reset confirm")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
