package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	httpmiddleware "github.com/iermgmt/painel/internal/http/middleware"
	"github.com/iermgmt/painel/internal/repo"
	"github.com/iermgmt/painel/internal/service"
)

const maxBodyBytes = 1 << 16

type refreshPayload struct {
	Refresh string `json:"refresh"`
}

// Login troca id_number e senha por access, refresh e perfil.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		IDNumber string `json:"id_number"`
		Password string `json:"password"`
	}

	if err := decodeBody(w, r, &payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	if strings.TrimSpace(payload.IDNumber) == "" || payload.Password == "" {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id_number e password são obrigatórios", nil)
		return
	}

	result, err := h.auth.Login(r.Context(), payload.IDNumber, payload.Password)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"access":  result.AccessToken,
		"refresh": result.RefreshToken,
		"user":    result.Profile,
	})
}

// Refresh emite novo access token; com rotação também devolve novo refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var payload refreshPayload
	if err := decodeBody(w, r, &payload); err != nil || strings.TrimSpace(payload.Refresh) == "" {
		WriteError(w, http.StatusUnauthorized, "AUTH", "refresh ausente", nil)
		return
	}

	result, err := h.auth.Refresh(r.Context(), payload.Refresh)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRefreshInvalid),
			errors.Is(err, service.ErrAccountDisabled),
			errors.Is(err, service.ErrNoEligibleRole):
			WriteError(w, http.StatusUnauthorized, "AUTH", "refresh inválido", nil)
		default:
			log.Error().Err(err).Msg("refresh: falha ao renovar")
			WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro ao renovar sessão", nil)
		}
		return
	}

	body := map[string]string{"access": result.AccessToken}
	if result.RefreshToken != "" {
		body["refresh"] = result.RefreshToken
	}
	WriteJSON(w, http.StatusOK, body)
}

// Logout revoga o refresh token informado. Sempre responde sucesso.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var payload refreshPayload
	if err := decodeBody(w, r, &payload); err == nil && payload.Refresh != "" {
		if err := h.auth.Logout(r.Context(), payload.Refresh); err != nil {
			log.Warn().Err(err).Msg("logout: falha ao revogar refresh")
		}
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me retorna o perfil do usuário autenticado.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	subject, err := uuid.Parse(httpmiddleware.GetSubject(r.Context()))
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	profile, err := h.auth.Me(r.Context(), subject)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound), errors.Is(err, service.ErrAccountDisabled):
			WriteError(w, http.StatusUnauthorized, "AUTH", "usuário indisponível", nil)
		default:
			log.Error().Err(err).Msg("me: falha ao carregar perfil")
			WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível carregar perfil", nil)
		}
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"user": profile})
}

func (h *Handler) handleAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "AUTH", err.Error(), nil)
	case errors.Is(err, service.ErrLocked):
		WriteError(w, http.StatusTooManyRequests, "LOCKED", err.Error(), nil)
	case errors.Is(err, service.ErrAccountDisabled):
		WriteError(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	case errors.Is(err, service.ErrNoEligibleRole):
		WriteError(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	default:
		log.Error().Err(err).Msg("login: erro inesperado")
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro ao autenticar", nil)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
}
