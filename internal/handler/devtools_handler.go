package handler

import (
	"net/http"
	"strings"

	"github.com/boddenberg/eternity-backoffice-go/internal/domain"
	"github.com/boddenberg/eternity-backoffice-go/internal/infra/observability"
	"github.com/boddenberg/eternity-backoffice-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Dev tools: only mounted when DEV_AUTH=true
// ============================================================

// devTokenHandler mints an access token for a representative id, standing
// in for the login flow during local development.
func devTokenHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/dev/token")
		defer span.End()

		var req domain.DevTokenRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if strings.TrimSpace(req.RepresentativeID) == "" {
			writeError(w, http.StatusBadRequest, domain.KindInvalidRequest, "representativeId é obrigatório")
			return
		}

		tok, err := authSvc.IssueDevToken(ctx, strings.TrimSpace(req.RepresentativeID))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, tok)
	}
}

func familyMetricsHandler(metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := metrics.FamilySnapshot()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, snapshot)
	}
}
