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
// Clients (beneficiários)
// ============================================================

func listClientsHandler(svc *service.ClientService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/clients")
		defer span.End()

		actor, ok := ActorFromContext(ctx)
		if !ok {
			writeError(w, http.StatusUnauthorized, domain.KindUnauthorized, "unauthorized")
			return
		}

		clients, err := svc.List(ctx, actor, r.URL.Query().Get("q"), parseLimit(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Client]{Data: clients, Total: len(clients)})
	}
}

func registerClientHandler(svc *service.ClientService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/clients")
		defer span.End()

		actor, ok := ActorFromContext(ctx)
		if !ok {
			writeError(w, http.StatusUnauthorized, domain.KindUnauthorized, "unauthorized")
			return
		}

		var attrs domain.ClientAttributes
		if err := decodeJSON(w, r, &attrs); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		client, err := svc.RegisterClient(ctx, actor, attrs)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, client)
	}
}

func clientSheetHandler(svc *service.FamilyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/clients/{clientId}")
		defer span.End()

		clientID := chi.URLParam(r, "clientId")
		span.SetAttributes(attribute.String("client.id", clientID))

		sheet, err := svc.ClientSheet(ctx, clientID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, sheet)
	}
}

func updateClientHandler(svc *service.ClientService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/clients/{clientId}")
		defer span.End()

		actor, ok := ActorFromContext(ctx)
		if !ok {
			writeError(w, http.StatusUnauthorized, domain.KindUnauthorized, "unauthorized")
			return
		}

		var attrs domain.ClientAttributes
		if err := decodeJSON(w, r, &attrs); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		client, err := svc.UpdateProfile(ctx, actor, chi.URLParam(r, "clientId"), attrs)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, client)
	}
}
