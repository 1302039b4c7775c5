package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ochronus/goustream/internal/app"
	"github.com/ochronus/goustream/internal/config"
	"github.com/ochronus/goustream/internal/services/api"
	"github.com/ochronus/goustream/internal/services/media"
	"github.com/ochronus/goustream/internal/upload"
	"github.com/sirupsen/logrus"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRequester struct {
	mu        sync.Mutex
	calls     []string
	forms     []url.Values
	responses map[string]string
	errors    map[string]error
}

func (f *fakeRequester) AuthRequest(_ context.Context, method, path string, form url.Values) (api.Response, error) {
	key := method + " " + path
	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.forms = append(f.forms, form)
	f.mu.Unlock()

	if err := f.errors[key]; err != nil {
		return nil, err
	}
	body, ok := f.responses[key]
	if !ok {
		return nil, &api.RequestError{Method: method, URL: path, StatusCode: 404, Status: "404 Not Found"}
	}
	var resp api.Response
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

type fakeConn struct {
	stored   bytes.Buffer
	path     string
	storeErr error
}

func (c *fakeConn) Login(string, string) error { return nil }
func (c *fakeConn) Binary() error              { return nil }
func (c *fakeConn) Close() error               { return nil }
func (c *fakeConn) Store(path string, r io.Reader) error {
	if c.storeErr != nil {
		return c.storeErr
	}
	c.path = path
	_, err := io.Copy(&c.stored, r)
	return err
}

type fakeDialer struct{ conn *fakeConn }

func (d *fakeDialer) Dial(context.Context, string) (upload.Conn, error) { return d.conn, nil }

func setupTestConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Username = "testuser"
	cfg.Password = "testpass"
	cfg.Port = 0
	cfg.Loglevel = "error"
	return cfg
}

func setupTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Suppress log output during tests
	logger.SetOutput(io.Discard)
	return logger
}

func setupTestContainer(requester *fakeRequester, conn *fakeConn) *app.Container {
	logger := setupTestLogger()
	return &app.Container{
		Config:    setupTestConfig(),
		Logger:    logger,
		Requester: requester,
		Media:     media.NewClient(requester),
		Uploader:  upload.NewOrchestrator(requester, &fakeDialer{conn: conn}, logger),
	}
}

func basicAuthHeader(username, password string) string {
	auth := username + ":" + password
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(auth))
}

func multipartUpload(t *testing.T, fields map[string]string, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		w.WriteField(k, v)
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		part.Write([]byte(content))
	}
	w.Close()
	return &buf, w.FormDataContentType()
}

const initiateBody = `{"host":"ftp.example.com","user":"u","password":"p","port":21,"path":"up/123","fileId":777}`

func TestNewServer(t *testing.T) {
	container := setupTestContainer(&fakeRequester{}, &fakeConn{})

	server := NewServer(container)

	if server.config != container.Config {
		t.Error("config not set correctly")
	}
	if server.logger != container.Logger {
		t.Error("logger not set correctly")
	}
	if server.handler == nil || server.GetRouter() == nil {
		t.Error("expected handler and router")
	}
}

func TestValidateUser(t *testing.T) {
	handler := NewHandler(setupTestContainer(&fakeRequester{}, &fakeConn{}))

	tests := []struct {
		name     string
		auth     string
		expected bool
	}{
		{"valid credentials", basicAuthHeader("testuser", "testpass"), true},
		{"invalid username", basicAuthHeader("wronguser", "testpass"), false},
		{"invalid password", basicAuthHeader("testuser", "wrongpass"), false},
		{"empty auth header", "", false},
		{"invalid auth format", "NotBasic abc123", false},
		{"invalid base64", "Basic !!!invalid!!!", false},
		{"missing colon in decoded", "Basic " + base64.StdEncoding.EncodeToString([]byte("nocolon")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest("GET", "/", nil)
			if tt.auth != "" {
				c.Request.Header.Set("Authorization", tt.auth)
			}
			if got := handler.validateUser(c); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestUnauthorizedRequest(t *testing.T) {
	router := NewServer(setupTestContainer(&fakeRequester{}, &fakeConn{})).GetRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/channels/42/videos", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Error("expected WWW-Authenticate challenge")
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("expected a request id on every response")
	}
}

func TestUploadEndpoint(t *testing.T) {
	requester := &fakeRequester{responses: map[string]string{
		"POST channels/42/uploads.json":     initiateBody,
		"PUT channels/42/uploads/777.json": `{}`,
	}}
	conn := &fakeConn{}
	router := NewServer(setupTestContainer(requester, conn)).GetRouter()

	body, contentType := multipartUpload(t, map[string]string{"description": "D"}, "clip.mov", "movie-bytes")
	req := httptest.NewRequest("POST", "/channels/42/uploads", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", basicAuthHeader("testuser", "testpass"))
	req.Header.Set(requestIDHeader, "req-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var result upload.Result
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result != (upload.Result{ChannelID: "42", FileID: "777"}) {
		t.Errorf("unexpected result %+v", result)
	}
	if conn.path != "up/123.mov" || conn.stored.String() != "movie-bytes" {
		t.Errorf("unexpected transfer %q %q", conn.path, conn.stored.String())
	}
	form := requester.forms[0]
	if form.Get("title") != "clip.mov" || form.Get("description") != "D" || form.Get("protect") != "private" {
		t.Errorf("unexpected initiate form %v", form)
	}
	if w.Header().Get(requestIDHeader) != "req-1" {
		t.Errorf("expected request id to be echoed, got %q", w.Header().Get(requestIDHeader))
	}
}

func TestUploadEndpointMissingFile(t *testing.T) {
	router := NewServer(setupTestContainer(&fakeRequester{}, &fakeConn{})).GetRouter()

	body, contentType := multipartUpload(t, map[string]string{"title": "T"}, "", "")
	req := httptest.NewRequest("POST", "/channels/42/uploads", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", basicAuthHeader("testuser", "testpass"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestUploadEndpointTransferFailure(t *testing.T) {
	requester := &fakeRequester{responses: map[string]string{
		"POST channels/42/uploads.json": initiateBody,
	}}
	conn := &fakeConn{storeErr: errors.New("broken pipe")}
	router := NewServer(setupTestContainer(requester, conn)).GetRouter()

	body, contentType := multipartUpload(t, map[string]string{"title": "T", "protect": "public"}, "a.mp4", "x")
	req := httptest.NewRequest("POST", "/channels/42/uploads", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", basicAuthHeader("testuser", "testpass"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["phase"] != "transfer" || resp["fileId"] != "777" {
		t.Errorf("unexpected error body %v", resp)
	}
	for _, call := range requester.calls {
		if strings.HasPrefix(call, "PUT") {
			t.Error("complete must not be called after a failed transfer")
		}
	}
	if requester.forms[0].Get("protect") != "public" {
		t.Errorf("expected protect from form, got %v", requester.forms[0])
	}
}

func TestListChannelVideos(t *testing.T) {
	requester := &fakeRequester{responses: map[string]string{
		"GET channels/42/videos.json": `{"videos":[{"id":1},{"id":2}],"paging":{"next":{"href":"https://api/x?p=2"}}}`,
	}}
	router := NewServer(setupTestContainer(requester, &fakeConn{})).GetRouter()

	req := httptest.NewRequest("GET", "/channels/42/videos", nil)
	req.Header.Set("Authorization", basicAuthHeader("testuser", "testpass"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp pageResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 2 || !resp.HasNext || resp.Next != "https://api/x?p=2" {
		t.Errorf("unexpected page %+v", resp)
	}
}

func TestListMissingChannelIsEmpty(t *testing.T) {
	router := NewServer(setupTestContainer(&fakeRequester{}, &fakeConn{})).GetRouter()

	req := httptest.NewRequest("GET", "/users/nobody/playlists", nil)
	req.Header.Set("Authorization", basicAuthHeader("testuser", "testpass"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"items":[]`) || !strings.Contains(w.Body.String(), `"hasNext":false`) {
		t.Errorf("expected empty page, got %s", w.Body.String())
	}
}

func TestListUpstreamError(t *testing.T) {
	requester := &fakeRequester{errors: map[string]error{
		"GET channels/42/videos.json": &api.RequestError{StatusCode: 500, Status: "500 Internal Server Error"},
	}}
	router := NewServer(setupTestContainer(requester, &fakeConn{})).GetRouter()

	req := httptest.NewRequest("GET", "/channels/42/videos", nil)
	req.Header.Set("Authorization", basicAuthHeader("testuser", "testpass"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
}

func TestUploadStatusEndpoint(t *testing.T) {
	requester := &fakeRequester{responses: map[string]string{
		"GET channels/42/uploads/777.json": `{"status":"ready","videoId":9}`,
	}}
	router := NewServer(setupTestContainer(requester, &fakeConn{})).GetRouter()

	req := httptest.NewRequest("GET", "/channels/42/uploads/777", nil)
	req.Header.Set("Authorization", basicAuthHeader("testuser", "testpass"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ready"`) {
		t.Errorf("unexpected body %s", w.Body.String())
	}

	req = httptest.NewRequest("GET", "/channels/42/uploads/000", nil)
	req.Header.Set("Authorization", basicAuthHeader("testuser", "testpass"))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown upload, got %d", w.Code)
	}
}

func TestServerGracefulShutdownWithContext(t *testing.T) {
	container := setupTestContainer(&fakeRequester{}, &fakeConn{})
	s := NewServer(container)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.StartWithContext(ctx)
	}()

	// Allow the server to start listening.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("expected graceful shutdown without error, got: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down after context cancellation")
	}
}
