package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/weiawesome/sync-party/internal/auth"
	"github.com/weiawesome/sync-party/internal/chat"
	"github.com/weiawesome/sync-party/internal/domain"
	"github.com/weiawesome/sync-party/internal/hub"
	"github.com/weiawesome/sync-party/internal/media"
	"github.com/weiawesome/sync-party/internal/party"
	"github.com/weiawesome/sync-party/internal/repository"
	"github.com/weiawesome/sync-party/pkg/database"
	"github.com/weiawesome/sync-party/pkg/log"
	"github.com/weiawesome/sync-party/pkg/middleware"
	"github.com/weiawesome/sync-party/pkg/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	*httptest.Server
	authority *auth.Authority
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()

	db, err := database.New(&database.Config{Driver: "sqlite", FilePath: filepath.Join(dir, "api.db")})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, domain.Models()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	blobs, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: filepath.Join(dir, "blobs")})
	require.NoError(t, err)

	users := repository.NewGormUserRepository(db)
	parties := party.NewService(repository.NewGormPartyRepository(db), users)
	registry := media.NewRegistry(repository.NewGormMediaItemRepository(db), parties, blobs, media.Config{MaxUploadBytes: 1 << 16})

	signer, err := auth.NewTokenSigner("test", "sync-party")
	require.NoError(t, err)
	authority, err := auth.NewAuthority(users, auth.NewBcryptHasher(bcrypt.MinCost), signer, auth.NewMemorySessionStore(), time.Hour)
	require.NoError(t, err)
	sessions := auth.NewMiddleware(authority, false)

	channel := chat.NewChannel(parties, chat.Config{})
	t.Cleanup(channel.Close)

	r := gin.New()
	r.Use(log.GinMiddleware(zerolog.Nop()), sessions.Resolve())
	NewHandler(authority, sessions, registry, parties, middleware.NewRateLimiter(middleware.RateLimitConfig{})).RegisterRoutes(r)
	NewWSHandler(hub.NewHub(), channel, sessions, hub.Config{}, nil).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, authority: authority}
}

type apiClient struct {
	t    *testing.T
	base string
	http *http.Client
}

func (s *testServer) client(t *testing.T) *apiClient {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &apiClient{t: t, base: s.URL, http: &http.Client{Jar: jar}}
}

type envelope struct {
	Success bool            `json:"success"`
	Msg     string          `json:"msg"`
	User    json.RawMessage `json:"user"`
	Items   json.RawMessage `json:"items"`
	Data    json.RawMessage `json:"data"`
}

func (c *apiClient) do(method, path string, body interface{}) (int, envelope) {
	c.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.base+path, rd)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	return c.send(req)
}

func (c *apiClient) send(req *http.Request) (int, envelope) {
	c.t.Helper()
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func (c *apiClient) login(username, password string) {
	c.t.Helper()
	status, env := c.do(http.MethodPost, "/api/login", domain.Credentials{Username: username, Password: password})
	require.Equal(c.t, http.StatusOK, status, env.Msg)
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

// seedParty registers alice and bob, creates an admin and a party owned by
// alice with bob as a member.
func seedParty(t *testing.T, s *testServer) (alice, bob, admin *apiClient, partyID string) {
	t.Helper()
	ctx := context.Background()

	alice, bob, admin = s.client(t), s.client(t), s.client(t)
	for _, c := range []struct {
		cl   *apiClient
		name string
	}{{alice, "alice"}, {bob, "bob"}} {
		status, env := c.cl.do(http.MethodPost, "/api/register", domain.Credentials{Username: c.name, Password: "secret1"})
		require.Equal(t, http.StatusCreated, status)
		require.Equal(t, "registerSuccessful", env.Msg)
	}
	_, err := s.authority.CreateUser(ctx, "root", "secret1", domain.RoleAdmin)
	require.NoError(t, err)
	admin.login("root", "secret1")

	_, aliceEnv := alice.do(http.MethodGet, "/api/auth", nil)
	aliceID := decode[domain.Principal](t, aliceEnv.User).ID

	status, env := admin.do(http.MethodPost, "/api/party", domain.CreatePartyRequest{Name: "movie night", OwnerID: aliceID})
	require.Equal(t, http.StatusCreated, status, env.Msg)
	partyID = decode[domain.Party](t, env.Data).ID

	status, _ = alice.do(http.MethodPost, "/api/party/"+partyID+"/members", domain.AddMemberRequest{Username: "bob"})
	require.Equal(t, http.StatusOK, status)
	return alice, bob, admin, partyID
}

func TestAuthRoutes(t *testing.T) {
	s := newTestServer(t)
	c := s.client(t)

	status, env := c.do(http.MethodGet, "/api/auth", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "notAuthenticated", env.Msg)
	assert.False(t, env.Success)

	status, env = c.do(http.MethodPost, "/api/register", domain.Credentials{Username: "al", Password: "secret1"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validationError", env.Msg)

	status, _ = c.do(http.MethodPost, "/api/register", domain.Credentials{Username: "alice", Password: "secret1"})
	require.Equal(t, http.StatusCreated, status)

	status, env = s.client(t).do(http.MethodPost, "/api/register", domain.Credentials{Username: "alice", Password: "secret2"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "duplicateUsername", env.Msg)

	status, env = c.do(http.MethodGet, "/api/auth", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "authenticated", env.Msg)
	assert.Equal(t, "alice", decode[domain.Principal](t, env.User).Username)

	status, env = c.do(http.MethodPost, "/api/logout", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "logoutSuccessful", env.Msg)

	status, _ = c.do(http.MethodGet, "/api/auth", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env = c.do(http.MethodPost, "/api/login", domain.Credentials{Username: "alice", Password: "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalidCredentials", env.Msg)

	status, env = c.do(http.MethodPost, "/api/login", domain.Credentials{Username: "ghost", Password: "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalidCredentials", env.Msg)

	status, env = c.do(http.MethodPost, "/api/login", domain.Credentials{Username: "alice", Password: "secret1"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "loginSuccessful", env.Msg)
}

func TestMediaItemRoutes(t *testing.T) {
	s := newTestServer(t)
	alice, bob, admin, partyID := seedParty(t, s)

	status, env := bob.do(http.MethodPost, "/api/mediaItem", domain.CreateMediaItemRequest{
		MediaItem: domain.NewMediaItem{Type: domain.MediaTypeLink, URL: "https://example.com/v", Name: "clip"},
		PartyID:   partyID,
	})
	require.Equal(t, http.StatusCreated, status, env.Msg)
	assert.Equal(t, "mediaItemAddSuccessful", env.Msg)
	item := decode[domain.MediaItem](t, env.Data)

	status, env = bob.do(http.MethodPost, "/api/mediaItem", domain.CreateMediaItemRequest{
		MediaItem: domain.NewMediaItem{Type: domain.MediaTypeEmbed, URL: "http://example.com/v", Name: "clip"},
		PartyID:   partyID,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validationError", env.Msg)

	status, env = alice.do(http.MethodPut, "/api/mediaItem/"+item.ID, domain.MediaItemPatch{Name: "stolen"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "notAuthorized", env.Msg)

	status, _ = alice.do(http.MethodDelete, "/api/mediaItem/"+item.ID, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = bob.do(http.MethodPut, "/api/mediaItem/"+item.ID, domain.MediaItemPatch{Name: "renamed"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "mediaItemEditSuccessful", env.Msg)
	assert.Equal(t, int64(2), decode[domain.MediaItem](t, env.Data).Version)

	status, _ = bob.do(http.MethodGet, "/api/allMediaItems", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = admin.do(http.MethodGet, "/api/allMediaItems", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "fetchingSuccessful", env.Msg)
	assert.Len(t, decode[[]domain.MediaItem](t, env.Items), 1)

	status, env = admin.do(http.MethodDelete, "/api/mediaItem/"+item.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "mediaItemDeleteSuccessful", env.Msg)

	status, env = admin.do(http.MethodDelete, "/api/mediaItem/"+item.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "notFound", env.Msg)
}

func TestUploadRoute(t *testing.T) {
	s := newTestServer(t)
	alice, bob, _, partyID := seedParty(t, s)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("partyId", partyID))
	require.NoError(t, mw.WriteField("name", "trailer"))
	fw, err := mw.CreateFormFile("file", "trailer.mp4")
	require.NoError(t, err)
	_, err = fw.Write([]byte("not really a video"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, s.URL+"/api/file", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	status, env := alice.send(req)
	require.Equal(t, http.StatusCreated, status, env.Msg)
	item := decode[domain.MediaItem](t, env.Data)
	assert.Equal(t, domain.MediaTypeFile, item.Type)
	assert.True(t, strings.HasPrefix(item.URL, "parties/"+partyID+"/"))

	status, env = bob.do(http.MethodGet, "/api/party/"+partyID+"/mediaItems", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]domain.MediaItem](t, env.Items), 1)

	status, env = bob.do(http.MethodGet, "/api/mediaItem/"+item.ID+"/url", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "/"+item.URL, decode[map[string]string](t, env.Data)["url"])

	status, _ = alice.do(http.MethodDelete, "/api/mediaItem/"+item.ID, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = bob.do(http.MethodGet, "/api/mediaItem/"+item.ID+"/url", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestPartyRoutes(t *testing.T) {
	s := newTestServer(t)
	alice, bob, _, partyID := seedParty(t, s)

	status, env := bob.do(http.MethodPost, "/api/party", domain.CreatePartyRequest{Name: "mine"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "notAuthorized", env.Msg)

	off := false
	status, env = bob.do(http.MethodPut, "/api/party/"+partyID+"/active", domain.SetActiveRequest{Active: &off})
	assert.Equal(t, http.StatusForbidden, status)

	status, env = alice.do(http.MethodPut, "/api/party/"+partyID+"/active", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = alice.do(http.MethodPut, "/api/party/"+partyID+"/active", domain.SetActiveRequest{Active: &off})
	require.Equal(t, http.StatusOK, status)
	assert.False(t, decode[domain.Party](t, env.Data).Active)

	status, env = bob.do(http.MethodPost, "/api/mediaItem", domain.CreateMediaItemRequest{
		MediaItem: domain.NewMediaItem{Type: domain.MediaTypeLink, URL: "https://example.com", Name: "x"},
		PartyID:   partyID,
	})
	assert.Equal(t, http.StatusForbidden, status)

	status, env = bob.do(http.MethodGet, "/api/party", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]domain.Party](t, env.Items), 1)

	status, env = alice.do(http.MethodGet, "/api/party/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "notFound", env.Msg)
}

func dialWS(t *testing.T, s *testServer, c *apiClient) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(s.URL, "http") + "/api/chat/ws"

	dialer := websocket.Dialer{Jar: c.http.Jar, HandshakeTimeout: 2 * time.Second}
	conn, resp, err := dialer.Dial(u, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame map[string]interface{}
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestChatWebSocket(t *testing.T) {
	s := newTestServer(t)
	alice, bob, _, partyID := seedParty(t, s)

	anon := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	_, resp, err := anon.Dial("ws"+strings.TrimPrefix(s.URL, "http")+"/api/chat/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	a := dialWS(t, s, alice)
	b := dialWS(t, s, bob)

	require.NoError(t, a.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, "pong", readFrame(t, a)["type"])

	for _, conn := range []*websocket.Conn{a, b} {
		require.NoError(t, conn.WriteJSON(domain.PartyMessage{Type: domain.MsgTypeJoinParty, PartyID: partyID}))
		frame := readFrame(t, conn)
		assert.Equal(t, "party_joined", frame["type"])
		assert.Equal(t, partyID, frame["partyId"])
	}

	require.NoError(t, a.WriteJSON(domain.ChatMessageIn{Type: domain.MsgTypeChatMessage, PartyID: partyID, Message: "   "}))
	frame := readFrame(t, a)
	assert.Equal(t, "error", frame["type"])
	assert.Equal(t, "validationError", frame["code"])

	require.NoError(t, a.WriteJSON(domain.ChatMessageIn{Type: domain.MsgTypeChatMessage, PartyID: partyID, Message: "hello"}))
	for _, conn := range []*websocket.Conn{a, b} {
		frame := readFrame(t, conn)
		assert.Equal(t, "chat_message", frame["type"])
		assert.Equal(t, "hello", frame["message"])
		assert.Equal(t, "alice", frame["userName"])
		assert.Equal(t, float64(1), frame["arrivalOrder"])
	}

	require.NoError(t, b.WriteJSON(domain.ChatMessageIn{Type: domain.MsgTypeChatMessage, PartyID: "missing", Message: "hi"}))
	frame = readFrame(t, b)
	assert.Equal(t, "notFound", frame["code"])
	assert.Equal(t, "missing", frame["partyId"])

	require.NoError(t, b.WriteJSON(map[string]string{"type": "dance"}))
	assert.Equal(t, "validationError", readFrame(t, b)["code"])
}
