package handler

import (
	"net/http"

	"github.com/boddenberg/eternity-backoffice-go/internal/domain"
	"github.com/boddenberg/eternity-backoffice-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Family unit (composição familiar)
// ============================================================

func listDependentsHandler(svc *service.FamilyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/clients/{clientId}/family")
		defer span.End()

		subjectID := chi.URLParam(r, "clientId")
		span.SetAttributes(attribute.String("subject.id", subjectID))

		deps, err := svc.ListDependents(ctx, subjectID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Dependent]{Data: deps, Total: len(deps)})
	}
}

func linkCandidatesHandler(svc *service.FamilyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/clients/{clientId}/family/candidates")
		defer span.End()

		subjectID := chi.URLParam(r, "clientId")
		candidates, err := svc.LinkCandidates(ctx, subjectID, r.URL.Query().Get("q"), parseLimit(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Client]{Data: candidates, Total: len(candidates)})
	}
}

func linkExistingHandler(svc *service.FamilyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/clients/{clientId}/family")
		defer span.End()

		actor, ok := ActorFromContext(ctx)
		if !ok {
			writeError(w, http.StatusUnauthorized, domain.KindUnauthorized, "unauthorized")
			return
		}

		var req domain.LinkExistingRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		subjectID := chi.URLParam(r, "clientId")
		edgeID, err := svc.LinkExisting(ctx, actor, subjectID, req.MemberClientID, req.Kinship)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, domain.LinkExistingResponse{EdgeID: edgeID})
	}
}

// createAndLinkHandler answers 201 on full success and 207 when the client
// was created but could not be linked.
func createAndLinkHandler(svc *service.FamilyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/clients/{clientId}/family/new")
		defer span.End()

		actor, ok := ActorFromContext(ctx)
		if !ok {
			writeError(w, http.StatusUnauthorized, domain.KindUnauthorized, "unauthorized")
			return
		}

		var req domain.CreateAndLinkRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		subjectID := chi.URLParam(r, "clientId")
		res, err := svc.CreateAndLink(ctx, actor, subjectID, req.Client, req.Kinship)
		switch {
		case err == nil:
			writeJSON(w, http.StatusCreated, domain.CreateAndLinkResponse{ClientID: res.ClientID, EdgeID: res.EdgeID})
		case res.PartialSuccess():
			kind := domain.KindOf(err)
			logger.Warn("create-and-link partially applied",
				zap.String("subject_id", subjectID),
				zap.String("client_id", res.ClientID),
				zap.String("code", string(kind)),
			)
			writeJSON(w, http.StatusMultiStatus, domain.CreateAndLinkResponse{
				ClientID: res.ClientID,
				Partial:  true,
				Error:    message(kind, err),
				Code:     kind,
			})
		default:
			handleServiceError(w, err, logger)
		}
	}
}

func unlinkHandler(svc *service.FamilyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/clients/{clientId}/family/{edgeId}")
		defer span.End()

		actor, ok := ActorFromContext(ctx)
		if !ok {
			writeError(w, http.StatusUnauthorized, domain.KindUnauthorized, "unauthorized")
			return
		}

		subjectID := chi.URLParam(r, "clientId")
		edgeID := chi.URLParam(r, "edgeId")
		if err := svc.Unlink(ctx, actor, subjectID, edgeID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
