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
// Representatives (admin console)
// ============================================================

func listRepresentativesHandler(svc *service.RepresentativeService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/representatives")
		defer span.End()

		actor, ok := ActorFromContext(ctx)
		if !ok {
			writeError(w, http.StatusUnauthorized, domain.KindUnauthorized, "unauthorized")
			return
		}

		reps, err := svc.List(ctx, actor)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Representative]{Data: reps, Total: len(reps)})
	}
}

func createRepresentativeHandler(svc *service.RepresentativeService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/representatives")
		defer span.End()

		actor, ok := ActorFromContext(ctx)
		if !ok {
			writeError(w, http.StatusUnauthorized, domain.KindUnauthorized, "unauthorized")
			return
		}

		var attrs domain.RepresentativeAttributes
		if err := decodeJSON(w, r, &attrs); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		rep, err := svc.Create(ctx, actor, attrs)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, rep)
	}
}

func updateRepresentativeHandler(svc *service.RepresentativeService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/representatives/{representativeId}")
		defer span.End()

		actor, ok := ActorFromContext(ctx)
		if !ok {
			writeError(w, http.StatusUnauthorized, domain.KindUnauthorized, "unauthorized")
			return
		}

		var attrs domain.RepresentativeAttributes
		if err := decodeJSON(w, r, &attrs); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		id := chi.URLParam(r, "representativeId")
		span.SetAttributes(attribute.String("representative.id", id))
		rep, err := svc.Update(ctx, actor, id, attrs)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

func setRepresentativeStatusHandler(svc *service.RepresentativeService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/representatives/{representativeId}/status")
		defer span.End()

		actor, ok := ActorFromContext(ctx)
		if !ok {
			writeError(w, http.StatusUnauthorized, domain.KindUnauthorized, "unauthorized")
			return
		}

		var req domain.RepresentativeStatusRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		id := chi.URLParam(r, "representativeId")
		span.SetAttributes(attribute.String("representative.id", id))
		rep, err := svc.SetStatus(ctx, actor, id, req.Status)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}
