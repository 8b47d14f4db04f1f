// Package api exposes registration ID management for authenticated users.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-gcm-service/pkg/dispatch"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

const (
	maxRequestBytes        = 8 << 10
	maxRegistrationIDBytes = 4096
)

type TokenAPI struct {
	Store  dispatch.TokenStore
	Logger *slog.Logger
}

func NewTokenAPI(store dispatch.TokenStore, logger *slog.Logger) *TokenAPI {
	return &TokenAPI{
		Store:  store,
		Logger: logger.With("component", "TokenAPI"),
	}
}

// RegistrationRequest is the body of both register and unregister.
type RegistrationRequest struct {
	RegistrationID string `json:"registration_id"`
}

// Register stores a registration ID for the caller. Answers 204.
func (api *TokenAPI) Register(w http.ResponseWriter, r *http.Request) {
	user, req, ok := api.decode(w, r)
	if !ok {
		return
	}

	if err := api.Store.Register(r.Context(), user, req.RegistrationID); err != nil {
		api.Logger.Error("failed to register device", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}
	api.Logger.Debug("Device registered", "user", user.String())
	w.WriteHeader(http.StatusNoContent)
}

// Unregister removes a registration ID. It is idempotent: unknown IDs and
// store failures still answer 204, since the gateway will report a dead ID
// again on the next send.
func (api *TokenAPI) Unregister(w http.ResponseWriter, r *http.Request) {
	user, req, ok := api.decode(w, r)
	if !ok {
		return
	}

	if err := api.Store.Unregister(r.Context(), user, req.RegistrationID); err != nil {
		api.Logger.Warn("failed to unregister device", "err", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// decode authenticates the caller and reads the body, writing the error
// response itself when it returns false.
func (api *TokenAPI) decode(w http.ResponseWriter, r *http.Request) (user urn.URN, req RegistrationRequest, ok bool) {
	userID, ok := middleware.GetUserHandleFromContext(r.Context())
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return user, req, false
	}
	parsed, err := urn.Parse(userID)
	if err != nil {
		api.Logger.Warn("Caller identity is not a URN", "user_id", userID, "err", err)
		response.WriteJSONError(w, http.StatusForbidden, "invalid user identity")
		return user, req, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return user, req, false
	}
	switch {
	case req.RegistrationID == "":
		response.WriteJSONError(w, http.StatusBadRequest, "missing registration_id")
		return user, req, false
	case len(req.RegistrationID) > maxRegistrationIDBytes:
		response.WriteJSONError(w, http.StatusBadRequest, "registration_id too long")
		return user, req, false
	}
	return parsed, req, true
}
