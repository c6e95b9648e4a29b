package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deckbot-ai/deckbot/pkg/deck"
	"github.com/deckbot-ai/deckbot/pkg/domain"
	"github.com/deckbot-ai/deckbot/pkg/llm"
	"github.com/deckbot-ai/deckbot/pkg/session"
)

type echoAgent struct{}

func (echoAgent) Chat(ctx context.Context, input string) (string, error) { return "ok: " + input, nil }
func (echoAgent) History() []domain.Turn {
	return []domain.Turn{{Role: domain.RoleUser, Content: "hi"}}
}

func newTestServer(t *testing.T) (*Server, *deck.Manager) {
	t.Helper()
	manager, err := deck.NewManager(t.TempDir())
	require.NoError(t, err)

	registry := session.NewRegistry(func(name string) (*session.Service, error) {
		return session.NewService(session.ServiceConfig{
			Name:      name,
			Broker:    session.NewBroker(nil),
			Agent:     echoAgent{},
			ImagesDir: filepath.Join(manager.Dir(name), "images"),
		}), nil
	})

	specs := []llm.ToolSpec{{Name: "write_file", Description: "writes"}}
	return New(manager, registry, specs), manager
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestPresentationCRUD(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	w := doJSON(t, h, "POST", "/api/presentations", `{"name":"demo","description":"a demo"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, h, "GET", "/api/presentations/demo", "")
	require.Equal(t, http.StatusOK, w.Code)
	var p domain.Presentation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	require.Equal(t, "demo", p.Name)
	require.Equal(t, "a demo", p.Description)

	w = doJSON(t, h, "GET", "/api/presentations", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []domain.Presentation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)

	w = doJSON(t, h, "DELETE", "/api/presentations/demo", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, "GET", "/api/presentations/demo", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateRequiresName(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doJSON(t, srv.Handler(), "POST", "/api/presentations", `{"description":"nameless"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDuplicatePresentation(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	doJSON(t, h, "POST", "/api/presentations", `{"name":"src"}`)
	w := doJSON(t, h, "POST", "/api/presentations/src/duplicate", `{"new_name":"copy","copy_images":true}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, h, "GET", "/api/presentations/copy", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSendMessageAccepted(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	doJSON(t, h, "POST", "/api/presentations", `{"name":"demo"}`)

	w := doJSON(t, h, "POST", "/api/presentations/demo/message", `{"content":"add a slide"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	w = doJSON(t, h, "POST", "/api/presentations/demo/message", `{"content":""}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, h, "POST", "/api/presentations/ghost/message", `{"content":"x"}`)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHistoryEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	doJSON(t, h, "POST", "/api/presentations", `{"name":"demo"}`)

	w := doJSON(t, h, "GET", "/api/presentations/demo/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	var turns []domain.Turn
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &turns))
	require.Len(t, turns, 1)
}

func TestSelectImageWithoutBatch(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	doJSON(t, h, "POST", "/api/presentations", `{"name":"demo"}`)
	w := doJSON(t, h, "POST", "/api/presentations/demo/select-image", `{"index":0}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetAspectRatioEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	doJSON(t, h, "POST", "/api/presentations", `{"name":"demo"}`)
	w := doJSON(t, h, "PUT", "/api/presentations/demo/aspect-ratio", `{"aspect_ratio":"16:9"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var p domain.Presentation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	require.Equal(t, "16:9", p.AspectRatio)
}

func TestFileEndpointConfinement(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	doJSON(t, h, "POST", "/api/presentations", `{"name":"demo"}`)

	w := doJSON(t, h, "GET", "/api/presentations/demo/files/"+deck.CanonicalFile, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "marp: true")

	w = doJSON(t, h, "GET", "/api/presentations/demo/files/nope.md", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestListTools(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doJSON(t, srv.Handler(), "GET", "/api/tools", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "write_file")
}
