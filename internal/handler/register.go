package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"tailorshop/internal/model"
	"tailorshop/internal/mw"
	"tailorshop/internal/service"
	"tailorshop/internal/worker"
)

type registerResponse struct {
	UserID  string     `json:"userId"`
	Role    model.Role `json:"role"`
	Token   string     `json:"token,omitempty"`
	Message string     `json:"message,omitempty"`
}

// RegisterCustomerHandler signs a new customer up and in.
func RegisterCustomerHandler(authSvc *service.AuthService, hub *worker.SessionHub, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req service.CustomerSignup
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}

		acc, err := authSvc.RegisterCustomer(r.Context(), req)
		if err != nil {
			writeAuthError(w, err, "customer register")
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
		writeJSON(w, http.StatusCreated, registerResponse{UserID: acc.ID, Role: acc.Role, Token: token})
	}
}

// RegisterTailorHandler records a tailor application. No token is issued
// until the account is verified.
func RegisterTailorHandler(authSvc *service.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req service.TailorSignup
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}

		acc, err := authSvc.RegisterTailor(r.Context(), req)
		if err != nil {
			writeAuthError(w, err, "tailor register")
			return
		}

		slog.Info("tailor registered, awaiting verification", "id", acc.ID)
		writeJSON(w, http.StatusCreated, registerResponse{
			UserID:  acc.ID,
			Role:    acc.Role,
			Message: "Your tailor account was created and is awaiting verification.",
		})
	}
}
