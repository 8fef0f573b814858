package webui

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/searchd/internal/config"
	"github.com/vmunix/searchd/internal/crypto"
	"github.com/vmunix/searchd/internal/engine"
	"github.com/vmunix/searchd/internal/store"
)

func hashForTest(password string) (string, error) {
	return crypto.HashPassword(password)
}

type fakeStore struct {
	mu           sync.Mutex
	passwordHash string
	autorun      bool
	hasKey       map[string]bool
	cleared      []string
	setKeys      map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{autorun: true, hasKey: map[string]bool{}, setKeys: map[string]string{}}
}

func (f *fakeStore) GetWebUIPasswordHash() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.passwordHash, nil
}

func (f *fakeStore) SetWebUIPasswordHash(hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passwordHash = hash
	return nil
}

func (f *fakeStore) GetAutorunEnabled() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.autorun, nil
}

func (f *fakeStore) SetAutorunEnabled(enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.autorun = enabled
	return nil
}

func (f *fakeStore) HasArrAPIKey(app string, instanceID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasKey[key(app, instanceID)], nil
}

func (f *fakeStore) ClearArrAPIKey(app string, instanceID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, key(app, instanceID))
	delete(f.hasKey, key(app, instanceID))
	return nil
}

func (f *fakeStore) SetArrAPIKey(app string, instanceID int64, apiKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setKeys[key(app, instanceID)] = apiKey
	f.hasKey[key(app, instanceID)] = true
	return nil
}

func (f *fakeStore) GetSyncStatuses() ([]store.SyncStatus, error)    { return nil, nil }
func (f *fakeStore) GetRecentRuns(limit int) ([]store.Run, error)    { return nil, nil }
func (f *fakeStore) GetLastInstanceRun(app string, instanceID int64) (*store.Run, error) {
	return nil, nil
}
func (f *fakeStore) GetRecentSearchActions(app string, instanceID int64, limit int) ([]store.SearchAction, error) {
	return nil, nil
}
func (f *fakeStore) CountSearchEventsSince(app string, instanceID int64, since time.Time) (int, error) {
	return 0, nil
}
func (f *fakeStore) GetSchedulerHeartbeat() (*time.Time, error) { return nil, nil }

func key(app string, instanceID int64) string { return app + ":" + strconv.FormatInt(instanceID, 10) }

type fakeRunner struct {
	mu    sync.Mutex
	calls int
	block chan struct{}
}

func (f *fakeRunner) RunInstance(ctx context.Context, rc config.RuntimeConfig, appType string, inst config.InstanceConfig, force bool, progress chan<- engine.Event) (engine.CycleStats, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	return engine.CycleStats{Status: "success"}, nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestServer(st webuiStore, runner instanceRunner, rc config.RuntimeConfig) (*Server, *echo.Echo) {
	s := NewServer(st, runner, "/nonexistent/config.yaml", rc, zerolog.New(io.Discard))
	e := echo.New()
	s.RegisterRoutes(e)
	return s, e
}

func do(e *echo.Echo, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAuthStatus_ReportsWhetherPasswordSet(t *testing.T) {
	st := newFakeStore()
	_, e := newTestServer(st, &fakeRunner{}, config.RuntimeConfig{})

	rec := do(e, http.MethodGet, "/api/auth/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"password_set":false}`, rec.Body.String())

	_ = st.SetWebUIPasswordHash("pbkdf2_sha256$1$aa$bb")
	rec = do(e, http.MethodGet, "/api/auth/status", "", nil)
	require.JSONEq(t, `{"password_set":true}`, rec.Body.String())
}

func TestAuthBootstrap_SetsPasswordOnceThenConflicts(t *testing.T) {
	st := newFakeStore()
	_, e := newTestServer(st, &fakeRunner{}, config.RuntimeConfig{})

	rec := do(e, http.MethodPost, "/api/auth/bootstrap", `{"password":"hunter22"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	hash, _ := st.GetWebUIPasswordHash()
	require.NotEmpty(t, hash)

	rec = do(e, http.MethodPost, "/api/auth/bootstrap", `{"password":"whatever1"}`, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestAuthBootstrap_RejectsShortPassword(t *testing.T) {
	st := newFakeStore()
	_, e := newTestServer(st, &fakeRunner{}, config.RuntimeConfig{})

	rec := do(e, http.MethodPost, "/api/auth/bootstrap", `{"password":"short"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProtectedRoute_401WithoutPasswordSet(t *testing.T) {
	st := newFakeStore()
	_, e := newTestServer(st, &fakeRunner{}, config.RuntimeConfig{})

	rec := do(e, http.MethodGet, "/api/status", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoute_401WithWrongPassword(t *testing.T) {
	st := newFakeStore()
	hash, err := hashForTest("correct-horse")
	require.NoError(t, err)
	_ = st.SetWebUIPasswordHash(hash)
	_, e := newTestServer(st, &fakeRunner{}, config.RuntimeConfig{})

	rec := do(e, http.MethodGet, "/api/status", "", map[string]string{"X-Seekarr-Password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoute_200WithHeaderPassword(t *testing.T) {
	st := newFakeStore()
	hash, err := hashForTest("correct-horse")
	require.NoError(t, err)
	_ = st.SetWebUIPasswordHash(hash)
	_, e := newTestServer(st, &fakeRunner{}, config.RuntimeConfig{})

	rec := do(e, http.MethodGet, "/api/status", "", map[string]string{"X-Seekarr-Password": "correct-horse"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleRun_ConflictWhenAlreadyRunning(t *testing.T) {
	st := newFakeStore()
	hash, _ := hashForTest("correct-horse")
	_ = st.SetWebUIPasswordHash(hash)
	runner := &fakeRunner{block: make(chan struct{})}
	rc := config.RuntimeConfig{RadarrInstances: []config.InstanceConfig{
		{InstanceID: 1, InstanceName: "Radarr", Enabled: true, Arr: config.ArrConfig{Enabled: true}},
	}}
	_, e := newTestServer(st, runner, rc)
	headers := map[string]string{"X-Seekarr-Password": "correct-horse"}

	rec := do(e, http.MethodPost, "/api/run", `{"force":false}`, headers)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec2 := do(e, http.MethodPost, "/api/run", `{"force":false}`, headers)
	require.Equal(t, http.StatusConflict, rec2.Code)

	close(runner.block)
}

func TestHandleAutorun_TogglesStore(t *testing.T) {
	st := newFakeStore()
	hash, _ := hashForTest("correct-horse")
	_ = st.SetWebUIPasswordHash(hash)
	_, e := newTestServer(st, &fakeRunner{}, config.RuntimeConfig{})
	headers := map[string]string{"X-Seekarr-Password": "correct-horse"}

	rec := do(e, http.MethodPost, "/api/autorun", `{"enabled":false}`, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	enabled, _ := st.GetAutorunEnabled()
	require.False(t, enabled)
}

func TestHandleClearCredentials_RejectsInvalidInstance(t *testing.T) {
	st := newFakeStore()
	hash, _ := hashForTest("correct-horse")
	_ = st.SetWebUIPasswordHash(hash)
	_, e := newTestServer(st, &fakeRunner{}, config.RuntimeConfig{})
	headers := map[string]string{"X-Seekarr-Password": "correct-horse"}

	rec := do(e, http.MethodPost, "/api/credentials/clear", `{"app":"plex","instance_id":1}`, headers)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleClearCredentials_ClearsKnownInstance(t *testing.T) {
	st := newFakeStore()
	hash, _ := hashForTest("correct-horse")
	_ = st.SetWebUIPasswordHash(hash)
	st.hasKey["radarr:1"] = true
	_, e := newTestServer(st, &fakeRunner{}, config.RuntimeConfig{})
	headers := map[string]string{"X-Seekarr-Password": "correct-horse"}

	rec := do(e, http.MethodPost, "/api/credentials/clear", `{"app":"radarr","instance_id":1}`, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	has, _ := st.HasArrAPIKey("radarr", 1)
	require.False(t, has)
}

func TestIndex_ServesDashboard(t *testing.T) {
	st := newFakeStore()
	_, e := newTestServer(st, &fakeRunner{}, config.RuntimeConfig{})

	rec := do(e, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "searchd")
}

func TestHandleSettingsGet_ReflectsConfiguredInstances(t *testing.T) {
	st := newFakeStore()
	hash, _ := hashForTest("correct-horse")
	_ = st.SetWebUIPasswordHash(hash)
	st.hasKey["radarr:1"] = true
	rc := config.RuntimeConfig{
		App: config.AppConfig{RateWindowMinutes: 60, RateCapPerInstance: 25, ItemRetryHours: 72},
		RadarrInstances: []config.InstanceConfig{
			{InstanceID: 1, InstanceName: "Radarr Main", Enabled: true, IntervalMinutes: 15, Arr: config.ArrConfig{Enabled: true, URL: "http://radarr:7878"}},
		},
	}
	_, e := newTestServer(st, &fakeRunner{}, rc)
	headers := map[string]string{"X-Seekarr-Password": "correct-horse"}

	rec := do(e, http.MethodGet, "/api/settings", "", headers)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `"instance_name":"Radarr Main"`)
	require.Contains(t, body, `"api_key_set":true`)
}

func TestHandleRunInstance_RejectsUnknownInstance(t *testing.T) {
	st := newFakeStore()
	hash, _ := hashForTest("correct-horse")
	_ = st.SetWebUIPasswordHash(hash)
	_, e := newTestServer(st, &fakeRunner{}, config.RuntimeConfig{})
	headers := map[string]string{"X-Seekarr-Password": "correct-horse"}

	rec := do(e, http.MethodPost, "/api/run_instance", `{"app":"radarr","instance_id":99}`, headers)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
