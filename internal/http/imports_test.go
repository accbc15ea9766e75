package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nself-org/chat-importer/internal/database"
	"github.com/nself-org/chat-importer/internal/importer"
)

func setupImportsTest(t *testing.T) (*gin.Engine, *database.Database, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dbPath := "./test_imports_" + strings.ReplaceAll(t.Name(), "/", "_") + ".db"
	db, err := database.NewDatabase(dbPath)
	require.NoError(t, err)

	router := NewRouter(RouterConfig{
		Database: db,
		Manager:  importer.NewManager(),
		Runs:     database.NewRunRepository(db),
		NewGateway: func(cfg importer.Config) importer.Gateway {
			return database.NewGateway(db, database.GatewayOptions{
				PreserveIDs:       cfg.PreserveIDs,
				OverwriteExisting: cfg.OverwriteExisting,
			})
		},
		// No task client: uploads run synchronously.
		UploadsDir:  t.TempDir(),
		FileWorkers: 2,
		Version:     "test",
	})

	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}
	return router, db, cleanup
}

func multipartUpload(t *testing.T, fields map[string]string, filename, contents string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(contents))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

const discordUpload = `{
  "guild": {"id": "g1", "name": "Server"},
  "channel": {"id": "c1", "name": "general"},
  "messages": [
    {"id": "m1", "type": "Default", "timestamp": "2024-06-01T12:00:00+00:00",
     "content": "hello", "author": {"id": "u1", "name": "alice"}}
  ]
}`

func TestImportsController_Start_Synchronous(t *testing.T) {
	router, db, cleanup := setupImportsTest(t)
	defer cleanup()

	body, contentType := multipartUpload(t, nil, "export.json", discordUpload)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/imports?wait=true", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response struct {
		ID     string          `json:"id"`
		Result importer.Result `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.NotEmpty(t, response.ID)
	assert.True(t, response.Result.Success)
	assert.Equal(t, 1, response.Result.Stats.UsersImported)
	assert.Equal(t, 1, response.Result.Stats.MessagesImported)

	// Entities landed in the store.
	var count int64
	db.DB.Table("messages").Count(&count)
	assert.Equal(t, int64(1), count)

	// The run record is queryable afterwards.
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/imports/"+response.ID, nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestImportsController_Start_MissingFile(t *testing.T) {
	router, _, cleanup := setupImportsTest(t)
	defer cleanup()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/imports", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportsController_Start_MalformedPayload(t *testing.T) {
	router, _, cleanup := setupImportsTest(t)
	defer cleanup()

	body, contentType := multipartUpload(t, map[string]string{"platform": "discord"}, "export.json", `{"users": []}`)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/imports", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "not a Discord export")
}

func TestImportsController_Start_UnknownPlatform(t *testing.T) {
	router, _, cleanup := setupImportsTest(t)
	defer cleanup()

	body, contentType := multipartUpload(t, map[string]string{"platform": "irc"}, "export.json", discordUpload)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/imports", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unsupported platform")
}

func TestImportsController_Start_InvalidConfig(t *testing.T) {
	router, _, cleanup := setupImportsTest(t)
	defer cleanup()

	body, contentType := multipartUpload(t, map[string]string{"config": "{not json"}, "export.json", discordUpload)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/imports", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid config")
}

func TestImportsController_Start_ConfigDisablesStages(t *testing.T) {
	router, db, cleanup := setupImportsTest(t)
	defer cleanup()

	cfg := `{"import_users": true, "import_channels": true, "import_messages": false,
	         "import_files": false, "import_reactions": false, "import_threads": false}`
	body, contentType := multipartUpload(t, map[string]string{"config": cfg}, "export.json", discordUpload)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/imports?wait=true", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var count int64
	db.DB.Table("messages").Count(&count)
	assert.Equal(t, int64(0), count)
	db.DB.Table("users").Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestImportsController_Progress_UnknownRun(t *testing.T) {
	router, _, cleanup := setupImportsTest(t)
	defer cleanup()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/imports/nope", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestImportsController_Cancel_UnknownRun(t *testing.T) {
	router, _, cleanup := setupImportsTest(t)
	defer cleanup()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/imports/nope/cancel", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestImportsController_List(t *testing.T) {
	router, _, cleanup := setupImportsTest(t)
	defer cleanup()

	body, contentType := multipartUpload(t, nil, "export.json", discordUpload)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/imports?wait=true", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/imports", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 1, response.Count)
}
