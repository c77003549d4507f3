package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gofiber/fiber/v2"

	"github.com/nyirinkindi/eshuri-messaging/internal/auth"
	"github.com/nyirinkindi/eshuri-messaging/internal/directory"
	"github.com/nyirinkindi/eshuri-messaging/internal/domain"
	"github.com/nyirinkindi/eshuri-messaging/internal/repository"
	"github.com/nyirinkindi/eshuri-messaging/internal/service"
	wsgw "github.com/nyirinkindi/eshuri-messaging/internal/ws"
)

const testSecret = "test-secret"

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	store := repository.NewMemoryStore()
	dir := directory.Static{
		"a1": {ID: "a1", Name: "Aline"},
		"b1": {ID: "b1", Name: "Ben"},
	}
	log := zap.NewNop().Sugar()
	svc := service.NewMessageService(store, dir, nil, log)
	gateway := wsgw.NewGateway(svc, nil, log)

	validator, err := auth.NewValidator("HS256", "", testSecret)
	require.NoError(t, err)

	return NewServer(svc, gateway, validator, nil)
}

func token(t *testing.T, userID string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": userID}).
		SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func doJSON(t *testing.T, app *fiber.App, method, path, userID string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, userID))
	}
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestRequiresAuth(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err = app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSendAndFetchMessage(t *testing.T) {
	app := newTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/v1/messages", "a1", fiber.Map{
		"dest": "b1",
		"msg":  "hello",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		Data domain.Message `json:"data"`
	}
	decode(t, resp, &created)
	require.NotEmpty(t, created.Data.ID)
	assert.Equal(t, "a1", created.Data.SenderID)
	assert.Equal(t, "b1", created.Data.RecipientID)

	resp = doJSON(t, app, http.MethodGet, "/v1/conversations/"+created.Data.ConversationID, "b1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var window struct {
		Data []domain.Message `json:"data"`
	}
	decode(t, resp, &window)
	require.Len(t, window.Data, 1)
	assert.Equal(t, "hello", window.Data[0].Body)
}

func TestSendMessageValidation(t *testing.T) {
	app := newTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/v1/messages", "a1", fiber.Map{
		"dest": "b1",
		"msg":  "",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/v1/messages", "a1", fiber.Map{
		"dest": "ghost",
		"msg":  "hi",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUnreadCountAndMarkRead(t *testing.T) {
	app := newTestApp(t)

	var convID string
	for i := 0; i < 3; i++ {
		resp := doJSON(t, app, http.MethodPost, "/v1/messages", "a1", fiber.Map{
			"dest": "b1",
			"msg":  fmt.Sprintf("note %d", i),
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var created struct {
			Data domain.Message `json:"data"`
		}
		decode(t, resp, &created)
		convID = created.Data.ConversationID
	}

	resp := doJSON(t, app, http.MethodGet, "/v1/messages/unread-count", "b1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var count struct {
		Count int64 `json:"count"`
	}
	decode(t, resp, &count)
	assert.Equal(t, int64(3), count.Count)

	resp = doJSON(t, app, http.MethodPost, "/v1/conversations/"+convID+"/read", "b1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated struct {
		Updated int64 `json:"updated"`
	}
	decode(t, resp, &updated)
	assert.Equal(t, int64(3), updated.Updated)

	resp = doJSON(t, app, http.MethodGet, "/v1/messages/unread-count", "b1", nil)
	decode(t, resp, &count)
	assert.Zero(t, count.Count)
}

func TestListConversations(t *testing.T) {
	app := newTestApp(t)

	resp := doJSON(t, app, http.MethodGet, "/v1/conversations", "a1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Data []service.ConversationEntry `json:"data"`
	}
	decode(t, resp, &list)
	assert.Empty(t, list.Data)

	doJSON(t, app, http.MethodPost, "/v1/messages", "b1", fiber.Map{"dest": "a1", "msg": "ping"})

	resp = doJSON(t, app, http.MethodGet, "/v1/conversations", "a1", nil)
	decode(t, resp, &list)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "ping", list.Data[0].LastMessage.Body)
	assert.Equal(t, int64(1), list.Data[0].UnreadCount)
	require.NotNil(t, list.Data[0].Participant)
	assert.Equal(t, "Ben", list.Data[0].Participant.Name)
}

func TestSearchEndpoint(t *testing.T) {
	app := newTestApp(t)

	doJSON(t, app, http.MethodPost, "/v1/messages", "a1", fiber.Map{"dest": "b1", "msg": "report card ready"})

	resp := doJSON(t, app, http.MethodGet, "/v1/messages/search?q=REPORT", "a1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var results struct {
		Data []domain.Message `json:"data"`
	}
	decode(t, resp, &results)
	require.Len(t, results.Data, 1)
	assert.Equal(t, "report card ready", results.Data[0].Body)

	resp = doJSON(t, app, http.MethodGet, "/v1/messages/search", "a1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteMessage(t *testing.T) {
	app := newTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/v1/messages", "a1", fiber.Map{"dest": "b1", "msg": "oops"})
	var created struct {
		Data domain.Message `json:"data"`
	}
	decode(t, resp, &created)

	resp = doJSON(t, app, http.MethodDelete, "/v1/messages/"+created.Data.ID, "a1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var del struct {
		Deleted bool `json:"deleted"`
	}
	decode(t, resp, &del)
	assert.False(t, del.Deleted)

	resp = doJSON(t, app, http.MethodDelete, "/v1/messages/"+created.Data.ID, "b1", nil)
	decode(t, resp, &del)
	assert.True(t, del.Deleted)

	resp = doJSON(t, app, http.MethodDelete, "/v1/messages/missing", "a1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLimitCapped(t *testing.T) {
	app := fiber.New()
	app.Get("/echo", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"limit": queryLimit(c, 20)})
	})

	var out struct {
		Limit int64 `json:"limit"`
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/echo?limit=1000000", nil))
	require.NoError(t, err)
	decode(t, resp, &out)
	assert.Equal(t, int64(maxPageSize), out.Limit)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/echo?limit=5", nil))
	require.NoError(t, err)
	decode(t, resp, &out)
	assert.Equal(t, int64(5), out.Limit)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/echo", nil))
	require.NoError(t, err)
	decode(t, resp, &out)
	assert.Equal(t, int64(20), out.Limit)
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
