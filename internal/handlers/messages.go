package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"eduhub-chat/internal/chat"
	"eduhub-chat/internal/middleware"
	"eduhub-chat/internal/repositories"
	"eduhub-chat/internal/telemetry"
)

const generalRoom = "general"

// OnlineLister reports who is currently announced on the live socket.
type OnlineLister interface {
	OnlineUsers() ([]string, error)
}

// MessageHandler serves persisted chat history and seen updates.
type MessageHandler struct {
	messageRepo repositories.MessageRepository
	online      OnlineLister
	emitter     *telemetry.AuditEmitter
	log         *zap.Logger
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(messageRepo repositories.MessageRepository, online OnlineLister, emitter *telemetry.AuditEmitter, log *zap.Logger) *MessageHandler {
	return &MessageHandler{
		messageRepo: messageRepo,
		online:      online,
		emitter:     emitter,
		log:         log.Named("messages"),
	}
}

// ListMessages returns a page of a room's history; no room means general.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	room := strings.TrimSpace(c.Query("room"))
	if room == "" {
		room = generalRoom
	}
	h.listRoom(c, room, 50)
}

// ListGeneral returns a page of the general feed.
func (h *MessageHandler) ListGeneral(c *gin.Context) {
	h.listRoom(c, generalRoom, maxPageSize)
}

func (h *MessageHandler) listRoom(c *gin.Context, room string, defaultLimit int) {
	p, err := parsePage(c, defaultLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msgs, err := h.messageRepo.ListByRoom(c.Request.Context(), room, p.limit, p.offset)
	if err != nil {
		h.log.Error("list messages failed", zap.String("room", room), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// OnlineUsers returns the live presence list.
func (h *MessageHandler) OnlineUsers(c *gin.Context) {
	users, err := h.online.OnlineUsers()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat is not running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// MarkSeen records that the caller has seen a persisted message.
func (h *MessageHandler) MarkSeen(c *gin.Context) {
	messageID := strings.TrimSpace(c.Param("message_id"))
	username := c.GetString(middleware.UsernameKey)

	seen, err := h.messageRepo.MarkSeen(c.Request.Context(), messageID, username)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	if err != nil {
		h.log.Error("mark seen failed", zap.String("message_id", messageID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update message"})
		return
	}

	emitAudit(c, h.emitter, "message_seen", "message marked seen", map[string]string{"message_id": messageID})
	c.JSON(http.StatusOK, gin.H{"messageId": messageID, "seenBy": seen})
}

type saveMessageRequest struct {
	MessageID  string `json:"messageId"`
	Text       string `json:"text"`
	Room       string `json:"room"`
	IsEmoji    bool   `json:"isEmoji"`
	IsSticker  bool   `json:"isSticker"`
	StickerURL string `json:"stickerUrl"`
	FileURL    string `json:"fileUrl"`
	FileType   string `json:"fileType"`
}

// SaveMessage stores a message sent outside the socket. The body's room
// defaults to general.
func (h *MessageHandler) SaveMessage(c *gin.Context) {
	h.save(c, "")
}

// SaveGeneral stores a message in the general feed regardless of the body's room.
func (h *MessageHandler) SaveGeneral(c *gin.Context) {
	h.save(c, generalRoom)
}

func (h *MessageHandler) save(c *gin.Context, forceRoom string) {
	var req saveMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if forceRoom != "" {
		req.Room = forceRoom
	}
	id := strings.TrimSpace(req.MessageID)
	if id == "" {
		id = uuid.NewString()
	}

	sender := chat.Identity{
		UserID:   c.GetString(middleware.UserIDKey),
		Username: c.GetString(middleware.UsernameKey),
	}
	msg, ok := chat.BuildMessage(id, sender, chat.SendMessageRequest{
		Text:       req.Text,
		RoomID:     req.Room,
		IsEmoji:    req.IsEmoji,
		IsSticker:  req.IsSticker,
		StickerURL: req.StickerURL,
		FileURL:    req.FileURL,
		FileType:   req.FileType,
	}, time.Now())
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message has no content"})
		return
	}

	if err := h.messageRepo.CreateMessage(c.Request.Context(), msg); err != nil {
		h.log.Error("save message failed", zap.String("message_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save message"})
		return
	}

	emitAudit(c, h.emitter, "message_saved", "message saved", map[string]string{"message_id": id, "room": msg.Room})
	c.JSON(http.StatusCreated, msg)
}
