package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"eduhub-chat/internal/middleware"
	"eduhub-chat/internal/models"
	"eduhub-chat/internal/repositories"
	"eduhub-chat/internal/telemetry"
)

// RoomHandler manages persisted room metadata and rosters. Live socket
// membership is separate and driven by joinRoom/leaveRoom events.
type RoomHandler struct {
	roomRepo    repositories.RoomRepository
	messageRepo repositories.MessageRepository
	emitter     *telemetry.AuditEmitter
	log         *zap.Logger
}

// NewRoomHandler builds a RoomHandler.
func NewRoomHandler(roomRepo repositories.RoomRepository, messageRepo repositories.MessageRepository, emitter *telemetry.AuditEmitter, log *zap.Logger) *RoomHandler {
	return &RoomHandler{
		roomRepo:    roomRepo,
		messageRepo: messageRepo,
		emitter:     emitter,
		log:         log.Named("rooms"),
	}
}

// ListRooms returns public rooms and the caller's private rooms.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.roomRepo.ListRooms(c.Request.Context(), c.GetString(middleware.UsernameKey))
	if err != nil {
		h.log.Error("list rooms failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rooms"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// GetRoom returns a single room.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, ok := h.loadRoom(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, room)
}

// CreateRoom creates a room owned by the caller.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		IsPrivate   bool   `json:"isPrivate"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || strings.EqualFold(name, generalRoom) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room name"})
		return
	}

	room, err := h.roomRepo.CreateRoom(c.Request.Context(), models.ChatRoom{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		IsPrivate:   req.IsPrivate,
		Creator:     c.GetString(middleware.UsernameKey),
		CreatorID:   c.GetString(middleware.UserIDKey),
	})
	if errors.Is(err, repositories.ErrRoomExists) {
		c.JSON(http.StatusConflict, gin.H{"error": "room already exists"})
		return
	}
	if err != nil {
		h.log.Error("create room failed", zap.String("name", name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create room"})
		return
	}

	emitAudit(c, h.emitter, "room_created", "room created", map[string]string{"room_id": room.ID, "name": room.Name})
	c.JSON(http.StatusCreated, room)
}

// JoinRoom enrolls the caller in a public room.
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	room, ok := h.loadRoom(c)
	if !ok {
		return
	}
	if room.IsPrivate {
		c.JSON(http.StatusForbidden, gin.H{"error": "room is private"})
		return
	}

	err := h.roomRepo.AddMember(c.Request.Context(), room.ID, c.GetString(middleware.UsernameKey), c.GetString(middleware.UserIDKey))
	switch {
	case errors.Is(err, repositories.ErrAlreadyMember):
		c.JSON(http.StatusConflict, gin.H{"error": "already a member"})
		return
	case errors.Is(err, repositories.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	case err != nil:
		h.log.Error("join room failed", zap.String("room_id", room.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not join room"})
		return
	}

	emitAudit(c, h.emitter, "room_joined", "joined room", map[string]string{"room_id": room.ID})
	c.JSON(http.StatusOK, gin.H{"status": "joined", "roomId": room.ID})
}

// LeaveRoom removes the caller from a room roster.
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	roomID := c.Param("room_id")
	err := h.roomRepo.RemoveMember(c.Request.Context(), roomID, c.GetString(middleware.UsernameKey))
	if errors.Is(err, repositories.ErrNotMember) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a member"})
		return
	}
	if err != nil {
		h.log.Error("leave room failed", zap.String("room_id", roomID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not leave room"})
		return
	}

	emitAudit(c, h.emitter, "room_left", "left room", map[string]string{"room_id": roomID})
	c.JSON(http.StatusOK, gin.H{"status": "left", "roomId": roomID})
}

// RoomMessages returns a page of a room's persisted history.
func (h *RoomHandler) RoomMessages(c *gin.Context) {
	room, ok := h.loadRoom(c)
	if !ok {
		return
	}
	p, err := parsePage(c, maxPageSize)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msgs, err := h.messageRepo.ListByRoom(c.Request.Context(), room.ID, p.limit, p.offset)
	if err != nil {
		h.log.Error("list room messages failed", zap.String("room_id", room.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *RoomHandler) loadRoom(c *gin.Context) (models.ChatRoom, bool) {
	room, err := h.roomRepo.GetRoom(c.Request.Context(), c.Param("room_id"))
	if errors.Is(err, repositories.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return models.ChatRoom{}, false
	}
	if err != nil {
		h.log.Error("load room failed", zap.String("room_id", c.Param("room_id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
		return models.ChatRoom{}, false
	}
	return room, true
}
