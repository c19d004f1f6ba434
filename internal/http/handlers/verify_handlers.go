package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/diagnosis/passwordless-api/internal/domain"
)

// RequestEmailVerification sends a verification code to the authenticated
// user's unverified email
func (h *Handlers) RequestEmailVerification(w http.ResponseWriter, r *http.Request) {
	h.requestVerification(w, r, domain.AliasEmail)
}

// RequestMobileVerification sends a verification code to the authenticated
// user's unverified mobile
func (h *Handlers) RequestMobileVerification(w http.ResponseWriter, r *http.Request) {
	h.requestVerification(w, r, domain.AliasMobile)
}

func (h *Handlers) requestVerification(w http.ResponseWriter, r *http.Request, aliasType domain.AliasType) {
	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Missing session", "UNAUTHORIZED")
		return
	}

	if err := h.flow.RequestVerification(r.Context(), claims.Sub, aliasType); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VERIFICATION_REQUEST_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "A verification code has been sent",
	})
}

// VerifyAlias consumes a verification code and marks the contact point
// trusted
func (h *Handlers) VerifyAlias(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Missing session", "UNAUTHORIZED")
		return
	}

	var req domain.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
		return
	}

	if err := h.flow.VerifyAliasByToken(r.Context(), claims.Sub, req.Token); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VERIFICATION_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Contact point verified",
	})
}
