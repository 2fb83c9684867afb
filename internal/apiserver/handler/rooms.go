package handler

import (
	"net/http"
	"strconv"

	"github.com/caseline/caseline/internal/apiserver/database"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Rooms serves room CRUD and message history.
type Rooms struct {
	db database.Database
}

// NewRooms creates the rooms handler.
func NewRooms(db database.Database) *Rooms {
	return &Rooms{db: db}
}

// HandleListRooms responds with all rooms, newest first.
func (h *Rooms) HandleListRooms(c *gin.Context) {
	rooms, err := h.db.GetRooms(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list rooms"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// HandleCreateRoom creates a room; the id is generated when omitted.
func (h *Rooms) HandleCreateRoom(c *gin.Context) {
	var req struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if err := h.db.CreateRoom(c.Request.Context(), req.ID, req.Name); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create room"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": req.ID, "name": req.Name})
}

// HandleGetMessages responds with a room's messages, paginated.
func (h *Rooms) HandleGetMessages(c *gin.Context) {
	roomID := c.Param("id")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room id is required"})
		return
	}

	page := 1
	if pageStr := c.Query("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}
	pageSize := 20
	if pageSizeStr := c.Query("pageSize"); pageSizeStr != "" {
		if ps, err := strconv.Atoi(pageSizeStr); err == nil && ps > 0 && ps <= 100 {
			pageSize = ps
		}
	}

	messages, err := h.db.GetMessagesWithPagination(c.Request.Context(), roomID, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// HandleArchiveRoom marks a room as archived.
func (h *Rooms) HandleArchiveRoom(c *gin.Context) {
	roomID := c.Param("id")
	exists, err := h.db.RoomExists(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check room"})
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	if err := h.db.ArchiveRoom(c.Request.Context(), roomID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to archive room"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": roomID, "archived": true})
}
