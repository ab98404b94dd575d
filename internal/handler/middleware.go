package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/boddenberg/eternity-backoffice-go/internal/domain"
	"github.com/boddenberg/eternity-backoffice-go/internal/infra/observability"
	"github.com/boddenberg/eternity-backoffice-go/internal/infra/resilience"
	"github.com/boddenberg/eternity-backoffice-go/internal/service"

	"go.uber.org/zap"
)

type contextKey string

const actorKey contextKey = "actor"

// ActorMiddleware validates Bearer tokens, resolves the representative
// behind them and injects the acting user into context.
func ActorMiddleware(authSvc *service.AuthService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, domain.KindUnauthorized, "Token de autenticação não fornecido")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("auth: invalid token format",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, domain.KindUnauthorized, "Formato de token inválido")
				return
			}

			actor, err := authSvc.Authenticate(r.Context(), parts[1])
			if err != nil {
				if domain.KindOf(err) == domain.KindUnauthorized {
					logger.Warn("auth: rejected token",
						zap.String("path", r.URL.Path),
						zap.String("remote_addr", r.RemoteAddr),
						zap.Error(err),
					)
					writeError(w, http.StatusUnauthorized, domain.KindUnauthorized, err.Error())
					return
				}
				handleServiceError(w, err, logger)
				return
			}

			observability.AnnotateRequest(r.Context(),
				zap.String("actor_id", actor.ID),
				zap.String("actor_role", string(actor.Role)),
			)
			ctx := context.WithValue(r.Context(), actorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorFromContext extracts the authenticated actor from context.
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(domain.Actor)
	return actor, ok
}

// BulkheadMiddleware bounds the number of in-flight requests. Callers that
// wait past the queue timeout, or whose context ends first, get 503 Overloaded.
func BulkheadMiddleware(b *resilience.Bulkhead, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := b.Acquire(r.Context()); err != nil {
				logger.Warn("bulkhead: no slot available",
					zap.String("path", r.URL.Path),
					zap.Int("in_use", b.InUse()),
					zap.Int("capacity", b.Capacity()),
					zap.Bool("queue_timeout", errors.Is(err, resilience.ErrBulkheadFull)),
				)
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusServiceUnavailable, domain.KindOverloaded, "Serviço sobrecarregado, tente novamente")
				return
			}
			defer b.Release()
			next.ServeHTTP(w, r)
		})
	}
}
