package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/annel0/blockverse/internal/auth"
	"github.com/annel0/blockverse/internal/storage"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world"
	"github.com/annel0/blockverse/internal/world/biome"
	"github.com/annel0/blockverse/internal/world/block"
	"github.com/annel0/blockverse/internal/world/generation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	srv    *AdminServer
	inst   *world.Instance
	issuer *auth.TokenIssuer
}

func newFixture(t *testing.T, withAuth bool) *fixture {
	t.Helper()

	store, err := storage.NewMemoryStore(2)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	inst, err := world.NewInstance(world.Options{
		Name:     "overworld",
		MinY:     0,
		MaxY:     16,
		Provider: store,
		Generator: generation.GeneratorFunc(func(ctx context.Context, unit generation.GenerationUnit) error {
			return unit.Modifier().FillHeight(0, 1, block.StoneBlockID)
		}),
	})
	require.NoError(t, err)

	var issuer *auth.TokenIssuer
	if withAuth {
		issuer, err = auth.NewTokenIssuer(auth.GenerateSecret(), time.Hour)
		require.NoError(t, err)
	}

	reg := prometheus.NewRegistry()
	srv, err := NewAdminServer(Config{Instance: inst, Issuer: issuer, Registry: reg, Gatherer: reg})
	require.NoError(t, err)
	return &fixture{srv: srv, inst: inst, issuer: issuer}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}, token string) (*httptest.ResponseRecorder, GenericResponse) {
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
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)

	var resp GenericResponse
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestAdmin_Health(t *testing.T) {
	f := newFixture(t, false)
	w, _ := f.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "overworld")
}

func TestAdmin_LoadThenQueryBlock(t *testing.T) {
	f := newFixture(t, false)

	w, resp := f.do(t, http.MethodPost, "/api/load", AreaRequest{X: 0, Z: 0, Radius: 1}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, resp.Success)
	assert.Len(t, f.inst.Loaded(), 9)

	w, resp = f.do(t, http.MethodGet, "/api/block?x=3&y=0&z=-5", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "stone", data["block"])

	w, _ = f.do(t, http.MethodGet, "/api/block?x=100&y=0&z=0", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = f.do(t, http.MethodGet, "/api/block?x=a&y=0&z=0", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmin_SetBlock(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.inst.LoadArea(context.Background(), f.inst.ViewDistance(vec.Vec3{}, 0))
	require.NoError(t, err)

	w, _ := f.do(t, http.MethodPut, "/api/block", SetBlockRequest{X: 1, Y: 2, Z: 3, Block: "log", Biome: "forest"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	p := vec.Vec3{X: 1, Y: 2, Z: 3}
	id, err := f.inst.Block(p)
	require.NoError(t, err)
	assert.Equal(t, block.LogBlockID, id)
	b, err := f.inst.Biome(p)
	require.NoError(t, err)
	assert.Equal(t, biome.Forest, b)

	w, _ = f.do(t, http.MethodPut, "/api/block", SetBlockRequest{Block: "unobtainium"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodPut, "/api/block", SetBlockRequest{X: 500, Block: "stone"}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdmin_ColumnsAndWorld(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.inst.LoadArea(context.Background(), f.inst.ViewDistance(vec.Vec3{}, 0))
	require.NoError(t, err)

	w, resp := f.do(t, http.MethodGet, "/api/columns", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, resp.Data.(map[string]interface{})["total"])

	w, resp = f.do(t, http.MethodGet, "/api/columns/0/0", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp.Data.(map[string]interface{})["loaded"])

	w, resp = f.do(t, http.MethodGet, "/api/columns/5/5", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp.Data.(map[string]interface{})["loaded"])

	w, _ = f.do(t, http.MethodGet, "/api/columns/x/0", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = f.do(t, http.MethodGet, "/api/world", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "overworld", data["name"])
	assert.EqualValues(t, 1, data["columns"])
	assert.EqualValues(t, 16, data["max_y"])
}

func TestAdmin_UnloadAndSave(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.inst.LoadArea(context.Background(), f.inst.ViewDistance(vec.Vec3{}, 1))
	require.NoError(t, err)

	w, _ := f.do(t, http.MethodPost, "/api/save", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, resp := f.do(t, http.MethodPost, "/api/unload", AreaRequest{Radius: 1}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 9, resp.Data.(map[string]interface{})["unloaded"])
	assert.Empty(t, f.inst.Loaded())

	w, _ = f.do(t, http.MethodPost, "/api/load", AreaRequest{Radius: maxAdminRadius + 1}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmin_OperatorTokens(t *testing.T) {
	f := newFixture(t, true)

	// Чтение не требует токена
	w, _ := f.do(t, http.MethodGet, "/api/world", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(t, http.MethodPost, "/api/save", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = f.do(t, http.MethodPost, "/api/save", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	readOnly, err := f.issuer.Issue("viewer", "overworld", false)
	require.NoError(t, err)
	w, _ = f.do(t, http.MethodPost, "/api/save", nil, readOnly)
	assert.Equal(t, http.StatusForbidden, w.Code)

	otherWorld, err := f.issuer.Issue("admin", "nether", true)
	require.NoError(t, err)
	w, _ = f.do(t, http.MethodPost, "/api/save", nil, otherWorld)
	assert.Equal(t, http.StatusForbidden, w.Code)

	token, err := f.issuer.Issue("admin", "overworld", true)
	require.NoError(t, err)
	w, _ = f.do(t, http.MethodPost, "/api/save", nil, token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdmin_Metrics(t *testing.T) {
	f := newFixture(t, false)
	f.do(t, http.MethodGet, "/health", nil, "")

	w, _ := f.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "world_admin_http_request_duration_seconds")
}

func TestNewAdminServer_RequiresInstance(t *testing.T) {
	_, err := NewAdminServer(Config{})
	assert.Error(t, err)
}
