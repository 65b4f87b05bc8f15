package http

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/iermgmt/painel/internal/repo"
	"github.com/iermgmt/painel/internal/service"
)

// ListUsers lista os usuários do painel (apenas admin).
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("users: falha ao listar")
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível listar usuários", nil)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"users": users})
}

// CreateUser cadastra um usuário (apenas admin).
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var in service.CreateUserInput
	if err := decodeBody(w, r, &in); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	profile, err := h.users.CreateUser(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		case errors.Is(err, repo.ErrConflict):
			WriteError(w, http.StatusConflict, "CONFLICT", "id_number ou email já cadastrado", nil)
		default:
			log.Error().Err(err).Msg("users: falha ao criar")
			WriteError(w, http.StatusInternalServerError, "INTERNAL", "não foi possível criar usuário", nil)
		}
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{"user": profile})
}
