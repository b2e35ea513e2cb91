package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskpilot/settings-gateway/internal/cipher"
	"github.com/deskpilot/settings-gateway/internal/config"
	"github.com/deskpilot/settings-gateway/internal/kvstore"
	"github.com/deskpilot/settings-gateway/internal/settings"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	aes, err := cipher.NewAESGCM([]byte("handler test key"))
	require.NoError(t, err)

	svc := settings.New(kvstore.NewMemoryStore(), aes)
	srv := New(config.ServerConfig{Addr: "127.0.0.1:0"}, svc)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func doJSON(t *testing.T, method, url string, body string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"ok"`)
}

// downStore fails every operation, standing in for a broken database.
type downStore struct{}

var errStoreDown = errors.New("store unavailable")

func (downStore) Get(ctx context.Context, keys []string) (map[string]json.RawMessage, error) {
	return nil, errStoreDown
}
func (downStore) Set(ctx context.Context, values map[string]json.RawMessage) error {
	return errStoreDown
}
func (downStore) Remove(ctx context.Context, keys []string) error { return errStoreDown }
func (downStore) Clear(ctx context.Context) error                 { return errStoreDown }

func TestHealthzAnswersOKWhenStoreIsDown(t *testing.T) {
	aes, err := cipher.NewAESGCM([]byte("handler test key"))
	require.NoError(t, err)
	svc := settings.New(downStore{}, aes)
	srv := New(config.ServerConfig{Addr: "127.0.0.1:0"}, svc)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "a broken store degrades to defaults, not an outage")
	assert.Contains(t, string(body), `"ok"`)
}

func TestGeneralSettingsGetAndPatch(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/v1/settings/general", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var general settings.GeneralSettings
	require.NoError(t, json.Unmarshal(body, &general))
	assert.Equal(t, "en", general.Language)

	resp, body = doJSON(t, http.MethodPatch, ts.URL+"/v1/settings/general", `{"language":"de"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &general))
	assert.Equal(t, "de", general.Language)
}

func TestAIModelKeysRoundTripThroughAPI(t *testing.T) {
	_, ts := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPatch, ts.URL+"/v1/settings/ai-models",
		`{"selectedModels":["gpt-4o"],"preferredModel":"gpt-4o","aiProviderKeys":{"openAi":"sk-api-test"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/v1/settings/ai-models", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var models settings.AIModelSettings
	require.NoError(t, json.Unmarshal(body, &models))
	assert.Equal(t, "sk-api-test", models.ProviderKeys.OpenAI)
	assert.Equal(t, "gpt-4o", models.PreferredModel)
}

func TestBacklogLifecycleThroughAPI(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/settings/backlogs",
		`{"domain":"a.example.com","apiKey":"k1","note":"prod"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created map[string]string
	require.NoError(t, json.Unmarshal(body, &created))
	require.NotEmpty(t, created["id"])

	resp, body = doJSON(t, http.MethodPut, ts.URL+"/v1/settings/backlogs",
		`[{"domain":"a.example.com","apiKey":"","note":"updated"}]`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var backlogs []settings.Backlog
	require.NoError(t, json.Unmarshal(body, &backlogs))
	require.Len(t, backlogs, 1)
	assert.Equal(t, "updated", backlogs[0].Note)
	assert.Equal(t, "k1", backlogs[0].APIKey, "empty apiKey keeps the stored secret")

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/v1/settings/backlogs/"+created["id"], "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/v1/settings/backlogs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &backlogs))
	assert.Empty(t, backlogs)
}

func TestSidebarWidthValidation(t *testing.T) {
	_, ts := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPatch, ts.URL+"/v1/settings/sidebar-width", `{"sidebarWidth":-1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPatch, ts.URL+"/v1/settings/sidebar-width", `{"sidebarWidth":640}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"sidebarWidth":640}`, string(body))
}

func TestResetThroughAPI(t *testing.T) {
	_, ts := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPatch, ts.URL+"/v1/settings/general", `{"language":"fr"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/settings/reset", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc settings.Document
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Equal(t, "en", doc.General.Language)
	assert.Equal(t, settings.DefaultSidebarWidth, doc.SidebarWidth)
}

func TestInvalidBodyRejected(t *testing.T) {
	_, ts := newTestServer(t)
	resp, _ := doJSON(t, http.MethodPatch, ts.URL+"/v1/settings/general", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSettingsChangedEventIsBroadcast(t *testing.T) {
	srv, ts := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/events"
	conn, resp, err := websocket.Dial(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool {
		return srv.Hub().Subscribers() == 1
	}, 2*time.Second, 10*time.Millisecond, "subscription must register")

	go func() {
		req, _ := http.NewRequest(http.MethodPatch, ts.URL+"/v1/settings/general",
			strings.NewReader(`{"language":"de"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			resp.Body.Close()
		}
	}()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var ev SettingsEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, "settings_changed", ev.Type)
	assert.Equal(t, "general", ev.Section)
}

func TestMethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/v1/settings/general", "application/json", bytes.NewReader(nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
