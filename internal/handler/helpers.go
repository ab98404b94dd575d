package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/boddenberg/eternity-backoffice-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string      `json:"error"`
	Code  domain.Kind `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code domain.Kind, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decodeJSON reads a JSON body into v. Failures are reported as
// *domain.ErrValidation with the invalid_request code.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		msg := "corpo da requisição inválido"
		if errors.Is(err, io.EOF) {
			msg = "corpo da requisição vazio"
		}
		return &domain.ErrValidation{Code: domain.CodeInvalidRequest, Field: "body", Message: msg}
	}
	return nil
}

// parseLimit reads ?limit=. Absent or malformed values yield 0 (service default).
func parseLimit(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

// statusFor maps an error Kind to its HTTP status.
func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindPermissionDenied:
		return http.StatusForbidden
	case domain.KindInvalidSelfLink, domain.KindMissingKinship,
		domain.KindInvalidClientData, domain.KindInvalidRepresentative, domain.KindInvalidRequest:
		return http.StatusBadRequest
	case domain.KindSubjectNotFound, domain.KindMemberNotFound,
		domain.KindEdgeNotFound, domain.KindClientNotFound, domain.KindRepresentativeNotFound:
		return http.StatusNotFound
	case domain.KindDuplicateLink, domain.KindDuplicateLogin:
		return http.StatusConflict
	case domain.KindStorageUnavailable, domain.KindOverloaded:
		return http.StatusServiceUnavailable
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	kind := domain.KindOf(err)
	status := statusFor(kind)

	switch {
	case kind == domain.KindInternal:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, status, kind, "internal server error")
		return
	case kind == domain.KindStorageUnavailable:
		logger.Error("storage unavailable", zap.Error(err))
		w.Header().Set("Retry-After", "5")
	case kind == domain.KindPermissionDenied, kind == domain.KindUnauthorized:
		logger.Warn("access refused", zap.String("code", string(kind)), zap.String("error", err.Error()))
	default:
		logger.Debug("request rejected", zap.String("code", string(kind)), zap.String("error", err.Error()))
	}
	writeError(w, status, kind, message(kind, err))
}

// message returns the user-facing text for err. Known kinds get a fixed
// Portuguese message so the UI can show it directly.
func message(kind domain.Kind, err error) string {
	var (
		validation *domain.ErrValidation
		denied     *domain.ErrPermissionDenied
	)
	switch kind {
	case domain.KindPermissionDenied:
		if errors.As(err, &denied) && denied.Action == domain.ActionManageRepresentatives {
			return "Apenas administradores podem gerenciar representantes"
		}
		return "Você não tem permissão para alterar a família deste cliente"
	case domain.KindInvalidSelfLink:
		return "Um cliente não pode ser dependente de si mesmo"
	case domain.KindMissingKinship:
		return "Informe o parentesco"
	case domain.KindDuplicateLink:
		return "Este cliente já está vinculado à família"
	case domain.KindSubjectNotFound:
		return "Titular não encontrado"
	case domain.KindMemberNotFound:
		return "Cliente a vincular não encontrado"
	case domain.KindEdgeNotFound:
		return "Vínculo não encontrado"
	case domain.KindClientNotFound:
		return "Cliente não encontrado"
	case domain.KindRepresentativeNotFound:
		return "Representante não encontrado"
	case domain.KindDuplicateLogin:
		return "Este login já está em uso"
	case domain.KindStorageUnavailable:
		return "Serviço temporariamente indisponível, tente novamente"
	case domain.KindInvalidClientData, domain.KindInvalidRepresentative, domain.KindInvalidRequest:
		if errors.As(err, &validation) {
			return fmt.Sprintf("%s: %s", validation.Field, validation.Message)
		}
	}
	return err.Error()
}
