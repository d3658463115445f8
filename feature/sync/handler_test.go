package sync

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"card-sync/core/docstore"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestFeature(t *testing.T) (*Feature, *docstore.MemoryStore) {
	t.Helper()
	src := newFakeCatalog(1)
	src.set(1, cards(1, 2)...)
	store := docstore.NewMemoryStore(docstore.DefaultMaxBatchSize)

	cfg := DefaultConfig()
	cfg.InterBatchDelay = 0
	engine, err := NewEngine(cfg, Deps{Store: store, Catalog: src, Logger: zap.NewNop()})
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	return NewFeature(engine, zap.NewNop()), store
}

func newTestApp(t *testing.T, f *Feature) *fiber.App {
	t.Helper()
	app := fiber.New()
	require.NoError(t, f.Load(app))
	return app
}

func TestHandleSyncCards(t *testing.T) {
	f, store := newTestFeature(t)
	app := newTestApp(t, f)

	req := httptest.NewRequest("POST", "/sync/cards", strings.NewReader(`{"dryRun":false,"limit":0}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var res Result
	body, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(body, &res))
	assert.True(t, res.Success)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, "cards", res.RunID)
	assert.Equal(t, 2, res.ItemsProcessed)
	assert.Equal(t, 2, res.ItemsUpdated)
	assert.Equal(t, 2, store.Writes(CardsCollection))
}

func TestHandleSyncPricesWithoutBody(t *testing.T) {
	f, store := newTestFeature(t)
	app := newTestApp(t, f)

	req := httptest.NewRequest("POST", "/sync/prices", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Zero(t, store.Writes(PricesCollection))
}

func TestHandleSyncBadRequest(t *testing.T) {
	f, _ := newTestFeature(t)
	app := newTestApp(t, f)

	for _, body := range []string{`{"limit":`, `{"limit":-1}`} {
		req := httptest.NewRequest("POST", "/sync/cards", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestHandleSyncConflict(t *testing.T) {
	f, _ := newTestFeature(t)
	app := newTestApp(t, f)

	require.True(t, f.Service().acquire(ProcessorCards))
	defer f.Service().release(ProcessorCards)

	resp, err := app.Test(httptest.NewRequest("POST", "/sync/cards", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestHandleCheckpoints(t *testing.T) {
	f, store := newTestFeature(t)
	app := newTestApp(t, f)

	resp, err := app.Test(httptest.NewRequest("GET", "/sync/checkpoints/cards", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	require.NoError(t, store.Set(t.Context(), CheckpointCollection, "cards", Checkpoint{RunID: "cards", CurrentGroupIndex: 3}))
	resp, err = app.Test(httptest.NewRequest("GET", "/sync/checkpoints/cards", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var cp Checkpoint
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cp))
	assert.Equal(t, 3, cp.CurrentGroupIndex)

	resp, err = app.Test(httptest.NewRequest("DELETE", "/sync/checkpoints/cards", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	found, err := store.Get(t.Context(), CheckpointCollection, "cards", &cp)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNewEngineValidation(t *testing.T) {
	_, err := NewEngine(DefaultConfig(), Deps{})
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.TieBreak = "coin_flip"
	_, err = NewEngine(cfg, Deps{Store: docstore.NewMemoryStore(10), Catalog: newFakeCatalog()})
	assert.Error(t, err)
}
