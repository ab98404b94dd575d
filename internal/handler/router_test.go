package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/boddenberg/eternity-backoffice-go/internal/domain"
	"github.com/boddenberg/eternity-backoffice-go/internal/handler"
	"github.com/boddenberg/eternity-backoffice-go/internal/infra/observability"
	"github.com/boddenberg/eternity-backoffice-go/internal/infra/resilience"
	"github.com/boddenberg/eternity-backoffice-go/internal/infra/sqlstore"
	"github.com/boddenberg/eternity-backoffice-go/internal/port"
	"github.com/boddenberg/eternity-backoffice-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testAPI struct {
	router  http.Handler
	deps    handler.Dependencies
	clients *sqlstore.ClientStore
	family  *sqlstore.FamilyStore
}

type option func(*handler.Dependencies, *testAPI)

func withDevAuth(on bool) option {
	return func(d *handler.Dependencies, _ *testAPI) { d.DevAuth = on }
}

func withKinshipStore(wrap func(port.KinshipStore) port.KinshipStore) option {
	return func(d *handler.Dependencies, a *testAPI) {
		d.Family = service.NewFamilyService(a.clients, wrap(a.family), d.Metrics, zap.NewNop())
	}
}

func withBulkhead(b *resilience.Bulkhead) option {
	return func(d *handler.Dependencies, _ *testAPI) { d.Bulkhead = b }
}

// newTestAPI serves a migrated SQLite database seeded with representatives
// rep1 and rep2, subject "1" (rep1) and clients "2".."4".
func newTestAPI(t *testing.T, opts ...option) *testAPI {
	t.Helper()
	ctx := context.Background()
	db := sqlstore.OpenTestSQLite(t)
	logger := zap.NewNop()

	a := &testAPI{
		clients: sqlstore.NewClientStore(db),
		family:  sqlstore.NewFamilyStore(db),
	}
	reps := sqlstore.NewRepresentativeStore(db)
	sqlstore.SeedRepresentatives(t, db, "rep1", "rep2")
	for _, c := range []struct{ id, name, cpf, rep string }{
		{"1", "João Silva", "123.456.789-00", "rep1"},
		{"2", "Maria Oliveira", "987.654.321-11", "rep1"},
		{"3", "Pedro Santos", "444.555.666-77", "rep2"},
		{"4", "Carlos Silva", "111.222.333-44", "rep1"},
	} {
		client := &domain.Client{ID: c.id, RegistrationDate: time.Now().UTC()}
		domain.ClientAttributes{Name: c.name, CPF: c.cpf, BirthDate: "1970-01-01", RepresentativeID: c.rep}.Apply(client)
		require.NoError(t, a.clients.Create(ctx, client))
	}

	metrics := observability.NewMetrics()
	a.deps = handler.Dependencies{
		Family:  service.NewFamilyService(a.clients, a.family, metrics, logger),
		Clients: service.NewClientService(a.clients, metrics, logger),
		Auth:    service.NewAuthService(reps, "test-secret", time.Hour, logger),
		Reps:    service.NewRepresentativeService(reps, metrics, logger),
		DB:      db,
		Metrics: metrics,
		DevAuth: true,
	}
	for _, opt := range opts {
		opt(&a.deps, a)
	}
	a.router = handler.NewRouter(a.deps, logger)
	return a
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) token(t *testing.T, repID string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/v1/dev/token", "", domain.DevTokenRequest{RepresentativeID: repID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tok domain.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
	return tok.AccessToken
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errorBody struct {
	Error string      `json:"error"`
	Code  domain.Kind `json:"code"`
}

// --- Operational ---

func TestOperationalEndpoints(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/ping"} {
		rec := api.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	health := decode[domain.HealthStatus](t, api.do(t, http.MethodGet, "/healthz", "", nil))
	assert.Equal(t, "healthy", health.Status)
	require.Len(t, health.Services, 2)
	assert.Equal(t, "database", health.Services[1].Name)
}

type downDB struct{}

func (downDB) Ping(context.Context) error { return errors.New("connection refused") }

func TestReadyz_DatabaseDown(t *testing.T) {
	api := newTestAPI(t, func(d *handler.Dependencies, _ *testAPI) { d.DB = downDB{} })

	rec := api.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	health := decode[domain.HealthStatus](t, api.do(t, http.MethodGet, "/healthz", "", nil))
	assert.Equal(t, "degraded", health.Status)
}

// --- Auth ---

func TestAuth_Rejections(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/v1/clients", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, domain.KindUnauthorized, decode[errorBody](t, rec).Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/clients", nil)
	req.Header.Set("Authorization", "Token abc")
	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodGet, "/v1/clients", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodPost, "/v1/dev/token", "", domain.DevTokenRequest{RepresentativeID: "rep9"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodPost, "/v1/dev/token", "", domain.DevTokenRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDevToken_DisabledByDefault(t *testing.T) {
	api := newTestAPI(t, withDevAuth(false))

	rec := api.do(t, http.MethodPost, "/v1/dev/token", "", domain.DevTokenRequest{RepresentativeID: "admin"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// --- Family unit ---

func TestFamily_Scenario(t *testing.T) {
	api := newTestAPI(t)
	rep1, rep2, admin := api.token(t, "rep1"), api.token(t, "rep2"), api.token(t, "admin")

	rec := api.do(t, http.MethodPost, "/v1/clients/1/family", rep1,
		domain.LinkExistingRequest{MemberClientID: "2", Kinship: "Cônjuge"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	edgeID := decode[domain.LinkExistingResponse](t, rec).EdgeID
	require.NotEmpty(t, edgeID)

	rec = api.do(t, http.MethodGet, "/v1/clients/1/family", rep2, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	deps := decode[domain.ListResponse[domain.Dependent]](t, rec)
	require.Equal(t, 1, deps.Total)
	assert.Equal(t, "Cônjuge", deps.Data[0].Kinship)
	assert.Equal(t, "2", deps.Data[0].Client.ID)

	rec = api.do(t, http.MethodPost, "/v1/clients/1/family", rep2,
		domain.LinkExistingRequest{MemberClientID: "3", Kinship: "Filho"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, domain.KindPermissionDenied, decode[errorBody](t, rec).Code)

	rec = api.do(t, http.MethodDelete, "/v1/clients/1/family/"+edgeID, admin, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/v1/clients/1/family", rep1, nil)
	deps = decode[domain.ListResponse[domain.Dependent]](t, rec)
	assert.Equal(t, 0, deps.Total)
	assert.NotNil(t, deps.Data)

	rec = api.do(t, http.MethodGet, "/v1/clients/2", rep1, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "member survives unlink")
}

func TestFamily_ErrorStatuses(t *testing.T) {
	api := newTestAPI(t)
	rep1 := api.token(t, "rep1")

	rec := api.do(t, http.MethodPost, "/v1/clients/1/family", rep1,
		domain.LinkExistingRequest{MemberClientID: "4", Kinship: "Irmão"})
	require.Equal(t, http.StatusCreated, rec.Code)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   domain.Kind
	}{
		{"duplicate", http.MethodPost, "/v1/clients/1/family", domain.LinkExistingRequest{MemberClientID: "4", Kinship: "Irmão"}, http.StatusConflict, domain.KindDuplicateLink},
		{"self link", http.MethodPost, "/v1/clients/1/family", domain.LinkExistingRequest{MemberClientID: "1", Kinship: "Qualquer"}, http.StatusBadRequest, domain.KindInvalidSelfLink},
		{"missing kinship", http.MethodPost, "/v1/clients/1/family", domain.LinkExistingRequest{MemberClientID: "2"}, http.StatusBadRequest, domain.KindMissingKinship},
		{"member missing", http.MethodPost, "/v1/clients/1/family", domain.LinkExistingRequest{MemberClientID: "99", Kinship: "Filho"}, http.StatusNotFound, domain.KindMemberNotFound},
		{"subject missing", http.MethodGet, "/v1/clients/99/family", nil, http.StatusNotFound, domain.KindSubjectNotFound},
		{"edge missing", http.MethodDelete, "/v1/clients/1/family/nope", nil, http.StatusNotFound, domain.KindEdgeNotFound},
		{"client missing", http.MethodGet, "/v1/clients/99", nil, http.StatusNotFound, domain.KindClientNotFound},
		{"invalid client data", http.MethodPost, "/v1/clients/1/family/new", domain.CreateAndLinkRequest{Client: domain.ClientAttributes{Name: "Ana"}, Kinship: "Filha"}, http.StatusBadRequest, domain.KindInvalidClientData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, tt.method, tt.path, rep1, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[errorBody](t, rec).Code)
		})
	}
}

func TestFamily_MalformedBody(t *testing.T) {
	api := newTestAPI(t)
	rep1 := api.token(t, "rep1")

	req := httptest.NewRequest(http.MethodPost, "/v1/clients/1/family", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+rep1)
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.KindInvalidRequest, decode[errorBody](t, rec).Code)
}

func TestFamily_CreateAndLink(t *testing.T) {
	api := newTestAPI(t)
	rep1 := api.token(t, "rep1")

	rec := api.do(t, http.MethodPost, "/v1/clients/1/family/new", rep1, domain.CreateAndLinkRequest{
		Client:  domain.ClientAttributes{Name: "Ana Silva", CPF: "555.666.777-88", BirthDate: "2010-05-20"},
		Kinship: "Filha",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[domain.CreateAndLinkResponse](t, rec)
	assert.NotEmpty(t, res.ClientID)
	assert.NotEmpty(t, res.EdgeID)
	assert.False(t, res.Partial)

	sheet := decode[domain.ClientSheet](t, api.do(t, http.MethodGet, "/v1/clients/1", rep1, nil))
	require.Len(t, sheet.Dependents, 1)
	assert.Equal(t, res.ClientID, sheet.Dependents[0].Client.ID)
	assert.Equal(t, "rep1", sheet.Dependents[0].Client.RepresentativeID)
}

type brokenKinship struct {
	port.KinshipStore
}

func (brokenKinship) Create(context.Context, *domain.KinshipEdge) error {
	return &domain.ErrStorageUnavailable{Store: "family_members", Err: errors.New("connection refused")}
}

func TestFamily_CreateAndLink_Partial(t *testing.T) {
	api := newTestAPI(t, withKinshipStore(func(s port.KinshipStore) port.KinshipStore {
		return brokenKinship{KinshipStore: s}
	}))
	rep1 := api.token(t, "rep1")

	rec := api.do(t, http.MethodPost, "/v1/clients/1/family/new", rep1, domain.CreateAndLinkRequest{
		Client:  domain.ClientAttributes{Name: "Ana Silva", CPF: "555.666.777-88", BirthDate: "2010-05-20"},
		Kinship: "Filha",
	})
	require.Equal(t, http.StatusMultiStatus, rec.Code, rec.Body.String())
	res := decode[domain.CreateAndLinkResponse](t, rec)
	assert.True(t, res.Partial)
	assert.NotEmpty(t, res.ClientID)
	assert.Empty(t, res.EdgeID)
	assert.Equal(t, domain.KindStorageUnavailable, res.Code)

	rec = api.do(t, http.MethodGet, "/v1/clients/"+res.ClientID, rep1, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFamily_Candidates(t *testing.T) {
	api := newTestAPI(t)
	rep1 := api.token(t, "rep1")

	rec := api.do(t, http.MethodPost, "/v1/clients/1/family", rep1,
		domain.LinkExistingRequest{MemberClientID: "4", Kinship: "Irmão"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, http.MethodGet, "/v1/clients/1/family/candidates?q=silva", rep1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[domain.ListResponse[domain.Client]](t, rec).Total)

	rec = api.do(t, http.MethodGet, "/v1/clients/1/family/candidates?limit=1", rep1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[domain.ListResponse[domain.Client]](t, rec).Total)
}

// --- Clients ---

func TestClients_ListRegisterUpdate(t *testing.T) {
	api := newTestAPI(t)
	rep1, rep2 := api.token(t, "rep1"), api.token(t, "rep2")

	rec := api.do(t, http.MethodGet, "/v1/clients", rep2, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[domain.ListResponse[domain.Client]](t, rec).Total)

	rec = api.do(t, http.MethodPost, "/v1/clients", rep2,
		domain.ClientAttributes{Name: "Lia", CPF: "000.111.222-33", BirthDate: "1999-09-09"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[domain.Client](t, rec)
	assert.Equal(t, "rep2", created.RepresentativeID)

	rec = api.do(t, http.MethodGet, "/v1/clients?q=lia", rep2, nil)
	assert.Equal(t, 1, decode[domain.ListResponse[domain.Client]](t, rec).Total)

	attrs := created.Attributes()
	attrs.Email = "lia@example.com"
	rec = api.do(t, http.MethodPut, "/v1/clients/"+created.ID, rep1, attrs)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPut, "/v1/clients/"+created.ID, rep2, attrs)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "lia@example.com", decode[domain.Client](t, rec).Email)
}

func TestFamilyMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	rep1 := api.token(t, "rep1")

	api.do(t, http.MethodPost, "/v1/clients/1/family", rep1, domain.LinkExistingRequest{MemberClientID: "2", Kinship: "Cônjuge"})
	api.do(t, http.MethodPost, "/v1/clients/1/family", rep1, domain.LinkExistingRequest{MemberClientID: "2", Kinship: "Cônjuge"})

	rec := api.do(t, http.MethodGet, "/v1/metrics/family", rep1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[domain.FamilyMetrics](t, rec)
	assert.Equal(t, 1.0, snap.Operations["LinkExisting"].Success)
	assert.Equal(t, 1.0, snap.Operations["LinkExisting"].Failed[string(domain.KindDuplicateLink)])
}

// --- Bulkhead ---

func TestBulkhead_RejectsWhenSaturated(t *testing.T) {
	bulkhead := resilience.NewBulkhead(1, 10*time.Millisecond)
	api := newTestAPI(t, withBulkhead(bulkhead))
	rep1 := api.token(t, "rep1")

	require.NoError(t, bulkhead.Acquire(context.Background()))
	defer bulkhead.Release()

	rec := api.do(t, http.MethodGet, "/v1/clients", rep1, nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, domain.KindOverloaded, decode[errorBody](t, rec).Code)

	// operational endpoints sit outside the bulkhead
	rec = api.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// --- Representatives ---

func TestRepresentatives_AdminConsole(t *testing.T) {
	api := newTestAPI(t)
	rep1, admin := api.token(t, "rep1"), api.token(t, "admin")

	rec := api.do(t, http.MethodGet, "/v1/representatives", rep1, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, domain.KindPermissionDenied, decode[errorBody](t, rec).Code)

	rec = api.do(t, http.MethodGet, "/v1/representatives", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[domain.ListResponse[domain.Representative]](t, rec)
	assert.Equal(t, 3, list.Total)
	for _, r := range list.Data {
		if r.ID == "rep1" {
			assert.Equal(t, 3, r.TotalClients)
		}
	}

	rec = api.do(t, http.MethodPost, "/v1/representatives", admin,
		domain.RepresentativeAttributes{Name: "Paula Reis", Login: "paula", CommissionRate: 8})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	paula := decode[domain.Representative](t, rec)
	assert.Equal(t, domain.RoleRepresentative, paula.Role)

	rec = api.do(t, http.MethodPost, "/v1/representatives", admin,
		domain.RepresentativeAttributes{Name: "Outra Paula", Login: "paula"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, domain.KindDuplicateLogin, decode[errorBody](t, rec).Code)

	// the new representative can sign in and register a client
	paulaTok := api.token(t, paula.ID)
	rec = api.do(t, http.MethodPost, "/v1/clients", paulaTok,
		domain.ClientAttributes{Name: "Helena Costa", CPF: "555.666.777-88", BirthDate: "1962-11-03"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, paula.ID, decode[domain.Client](t, rec).RepresentativeID)

	rec = api.do(t, http.MethodPut, "/v1/representatives/"+paula.ID, admin,
		domain.RepresentativeAttributes{Name: "Paula Reis", Login: "paula", PixKey: "paula@pix"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "paula@pix", decode[domain.Representative](t, rec).PixKey)

	rec = api.do(t, http.MethodPatch, "/v1/representatives/"+paula.ID+"/status", admin,
		domain.RepresentativeStatusRequest{Status: domain.RepresentativeInactive})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// deactivation revokes the existing token on the next request
	rec = api.do(t, http.MethodGet, "/v1/clients", paulaTok, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodPatch, "/v1/representatives/nope/status", admin,
		domain.RepresentativeStatusRequest{Status: domain.RepresentativeActive})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.KindRepresentativeNotFound, decode[errorBody](t, rec).Code)
}

func TestClients_UnknownRepresentativeRejected(t *testing.T) {
	api := newTestAPI(t)
	admin := api.token(t, "admin")

	rec := api.do(t, http.MethodPost, "/v1/clients", admin, domain.ClientAttributes{
		Name: "A", CPF: "1", BirthDate: "1980-01-01", RepresentativeID: "ghost-rep",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.KindInvalidClientData, decode[errorBody](t, rec).Code)

	subject, err := api.clients.FindByID(context.Background(), "1")
	require.NoError(t, err)
	attrs := subject.Attributes()
	attrs.RepresentativeID = "ghost-rep"
	rec = api.do(t, http.MethodPut, "/v1/clients/1", admin, attrs)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.KindInvalidClientData, decode[errorBody](t, rec).Code)
}
