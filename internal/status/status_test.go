package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Armin-kho/price-drop-bot/internal/scheduler"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeCounter struct {
	products, users int
	err             error
}

func (f fakeCounter) CountProducts(ctx context.Context) (int, error) { return f.products, f.err }
func (f fakeCounter) CountUsers(ctx context.Context) (int, error)    { return f.users, f.err }

type fakeCycles struct{ st scheduler.Stats }

func (f fakeCycles) LastCycle() scheduler.Stats { return f.st }

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	h.ServeHTTP(w, req)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestHealth(t *testing.T) {
	s := New(":0", fakeCounter{}, nil, nil)
	w, body := get(t, s.Router(), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "price-drop-bot", body["service"])
}

func TestStats(t *testing.T) {
	s := New(":0", fakeCounter{products: 3, users: 2}, fakeCycles{scheduler.Stats{Checked: 3, Alerts: 1, Cycles: 9}}, nil)
	w, body := get(t, s.Router(), "/stats")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, body["products"])
	assert.EqualValues(t, 2, body["users"])

	last, ok := body["last_cycle"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 3, last["checked"])
	assert.EqualValues(t, 1, last["alerts"])
	assert.EqualValues(t, 9, last["cycles"])
}

func TestStatsStoreError(t *testing.T) {
	s := New(":0", fakeCounter{err: errors.New("locked")}, nil, nil)
	w, body := get(t, s.Router(), "/stats")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "locked", body["error"])
}
