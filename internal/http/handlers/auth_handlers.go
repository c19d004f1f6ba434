package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/diagnosis/passwordless-api/internal/domain"
)

// RequestEmailToken sends a sign-in code to an email address
func (h *Handlers) RequestEmailToken(w http.ResponseWriter, r *http.Request) {
	var req domain.EmailTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	if err := h.flow.RequestEmailToken(r.Context(), &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "TOKEN_REQUEST_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "A sign-in code has been sent to your email",
	})
}

// RequestMobileToken sends a sign-in code to a mobile number
func (h *Handlers) RequestMobileToken(w http.ResponseWriter, r *http.Request) {
	var req domain.MobileTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	if err := h.flow.RequestMobileToken(r.Context(), &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "TOKEN_REQUEST_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "A sign-in code has been sent to your mobile",
	})
}

// Exchange trades a callback token for a session token
func (h *Handlers) Exchange(w http.ResponseWriter, r *http.Request) {
	var req domain.ExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	session, err := h.flow.Exchange(r.Context(), &req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error(), "EXCHANGE_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, session)
}
