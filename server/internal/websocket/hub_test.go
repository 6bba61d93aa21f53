package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocket-chat/server/internal/cache"
	"pocket-chat/server/pkg/jwt"
	"pocket-chat/server/pkg/util"
)

type testEnv struct {
	hub    *Hub
	jwt    *jwt.JWTService
	cache  *cache.MemoryCache
	server *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := cache.NewMemoryCache()
	hub := NewHub(mem, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	js := jwt.NewJWTService("test-secret", time.Hour, time.Hour)
	r := gin.New()
	NewHandler(hub, js, mem).RegisterRoutes(r)
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &testEnv{hub: hub, jwt: js, cache: mem, server: srv}
}

func (e *testEnv) dial(t *testing.T, token string) (*gorilla.Conn, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws?token=" + token
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	return conn, err
}

func readEvent(t *testing.T, conn *gorilla.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func waitUsers(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.ConnectedUsers() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestEventsReachOnlyTheOwner(t *testing.T) {
	env := newTestEnv(t)

	aliceToken, _ := env.jwt.GenerateAccessToken(1, "alice")
	bobToken, _ := env.jwt.GenerateAccessToken(2, "bob")

	alice, err := env.dial(t, aliceToken)
	require.NoError(t, err)
	defer alice.Close()
	bob, err := env.dial(t, bobToken)
	require.NoError(t, err)
	defer bob.Close()
	waitUsers(t, env.hub, 2)

	env.hub.SendToUser(context.Background(), 1, NewMessage(TypeMessagesDeleted, &MessagesDeletedPayload{
		ChatID:            5,
		DeletedMessageIDs: []int64{10, 11},
	}))

	msg := readEvent(t, alice)
	assert.Equal(t, TypeMessagesDeleted, msg["type"])
	payload := msg["payload"].(map[string]interface{})
	assert.Equal(t, float64(5), payload["chat_id"])
	assert.Equal(t, []interface{}{float64(10), float64(11)}, payload["deleted_message_ids"])

	// bob 只会收到自己心跳的 pong
	require.NoError(t, bob.WriteJSON(map[string]string{"type": TypeHeartbeat}))
	assert.Equal(t, TypePong, readEvent(t, bob)["type"])

	assert.Eventually(t, func() bool {
		n, _ := env.cache.OnlineUsers(context.Background())
		return n == 2
	}, time.Second, 10*time.Millisecond)
}

func TestRejectsBadTokens(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.dial(t, "")
	assert.Error(t, err)
	_, err = env.dial(t, "garbage")
	assert.Error(t, err)

	refresh, _ := env.jwt.GenerateRefreshToken(1, "alice")
	_, err = env.dial(t, refresh)
	assert.Error(t, err)

	access, _ := env.jwt.GenerateAccessToken(1, "alice")
	env.cache.BlacklistToken(context.Background(), util.HashToken(access), time.Now().Add(time.Hour))
	_, err = env.dial(t, access)
	assert.Error(t, err)
}

func TestDisconnectMarksOffline(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.jwt.GenerateAccessToken(1, "alice")

	conn, err := env.dial(t, token)
	require.NoError(t, err)
	waitUsers(t, env.hub, 1)

	conn.Close()
	waitUsers(t, env.hub, 0)
	assert.Eventually(t, func() bool {
		n, _ := env.cache.OnlineUsers(context.Background())
		return n == 0
	}, time.Second, 10*time.Millisecond)
}
