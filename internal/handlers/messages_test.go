package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"eduhub-chat/internal/middleware"
	"eduhub-chat/internal/mocks"
	"eduhub-chat/internal/models"
	"eduhub-chat/internal/repositories"
	"eduhub-chat/internal/telemetry"
)

func withUser(id, username string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, id)
		c.Set(middleware.UsernameKey, username)
		c.Next()
	}
}

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withUser("u-2", "bob"))
	r.GET("/api/chats", handler.ListMessages)
	r.GET("/api/chats/general", handler.ListGeneral)
	r.GET("/api/chats/online", handler.OnlineUsers)
	r.PUT("/api/chats/:message_id/seen", handler.MarkSeen)
	r.POST("/api/chats", handler.SaveMessage)
	r.POST("/api/chats/general", handler.SaveGeneral)
	return r
}

func TestListMessagesDefaultsToGeneral(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(NewMessageHandler(repo, nil, nil, zap.NewNop()))

	repo.On("ListByRoom", mock.Anything, "general", 50, 0).
		Return([]models.Message{{ID: "m-1", Text: "hi", Room: "general"}}, nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "m-1", resp.Messages[0].ID)
	repo.AssertExpectations(t)
}

func TestListMessagesPagination(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(NewMessageHandler(repo, nil, nil, zap.NewNop()))

	repo.On("ListByRoom", mock.Anything, "r-1", 100, 200).Return([]models.Message{}, nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chats?room=r-1&page=3&limit=500", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	repo.AssertExpectations(t)
}

func TestListMessagesBadPage(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(NewMessageHandler(repo, nil, nil, zap.NewNop()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chats?page=0", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	repo.AssertNotCalled(t, "ListByRoom", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestListGeneralRepoError(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(NewMessageHandler(repo, nil, nil, zap.NewNop()))

	repo.On("ListByRoom", mock.Anything, "general", 100, 0).Return(nil, assert.AnError).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chats/general", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	repo.AssertExpectations(t)
}

func TestOnlineUsers(t *testing.T) {
	online := new(mocks.OnlineListerMock)
	router := setupMessageRouter(NewMessageHandler(new(mocks.MessageRepositoryMock), online, nil, zap.NewNop()))

	online.On("OnlineUsers").Return([]string{"alice", "Guest_42"}, nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chats/online", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"users":["alice","Guest_42"]}`, rec.Body.String())
}

func TestMarkSeenPublishesAudit(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	pub := new(mocks.PublisherMock)
	emitter := telemetry.NewAuditEmitter(pub, "audit.chat", "eduhub-chat", "test", zap.NewNop())
	router := setupMessageRouter(NewMessageHandler(repo, nil, emitter, zap.NewNop()))

	repo.On("MarkSeen", mock.Anything, "m-1", "bob").Return([]string{"bob"}, nil).Once()
	pub.On("Publish", mock.Anything, "audit.chat", mock.MatchedBy(func(ev telemetry.AuditEnvelope) bool {
		return ev.Payload.Action == "message_seen" && ev.UserID != nil && *ev.UserID == "u-2"
	}), mock.Anything).Return(nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/chats/m-1/seen", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messageId":"m-1","seenBy":["bob"]}`, rec.Body.String())
	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestMarkSeenNotFound(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(NewMessageHandler(repo, nil, nil, zap.NewNop()))

	repo.On("MarkSeen", mock.Anything, "missing", "bob").Return(nil, repositories.ErrMessageNotFound).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/chats/missing/seen", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaveMessageUsesCallerIdentity(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(NewMessageHandler(repo, nil, nil, zap.NewNop()))

	repo.On("CreateMessage", mock.Anything, mock.MatchedBy(func(msg models.Message) bool {
		return msg.ID == "m-9" && msg.Username == "bob" && msg.UserID == "u-2" &&
			msg.Room == "algebra" && msg.Text == "homework?" && msg.Kind == models.KindPlain
	})).Return(nil).Once()

	body := `{"messageId":"m-9","username":"mallory","text":" homework? ","room":"algebra"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chats", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	var saved models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&saved))
	assert.Equal(t, "bob", saved.Username)
	assert.Empty(t, saved.SeenBy)
	repo.AssertExpectations(t)
}

func TestSaveGeneralForcesRoomAndAssignsID(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(NewMessageHandler(repo, nil, nil, zap.NewNop()))

	repo.On("CreateMessage", mock.Anything, mock.MatchedBy(func(msg models.Message) bool {
		return msg.ID != "" && msg.Room == "general" &&
			msg.Kind == models.KindSticker && msg.StickerURL == "/stickers/default/wave.png"
	})).Return(nil).Once()

	body := `{"room":"algebra","isSticker":true,"stickerUrl":"/stickers/default/wave.png"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chats/general", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	repo.AssertExpectations(t)
}

func TestSaveMessageRejectsEmptyAndBadBodies(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(NewMessageHandler(repo, nil, nil, zap.NewNop()))

	for _, body := range []string{`{"text":"   "}`, `{not json`} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chats", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	repo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestSaveMessageRepoFailure(t *testing.T) {
	repo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(NewMessageHandler(repo, nil, nil, zap.NewNop()))

	repo.On("CreateMessage", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chats", strings.NewReader(`{"text":"hi"}`)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	repo.AssertExpectations(t)
}
