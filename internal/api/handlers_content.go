package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"clubsite/internal/content"
)

type eventRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description" binding:"required"`
	Location    string    `json:"location"`
	StartsAt    time.Time `json:"starts_at" binding:"required"`
	EndsAt      time.Time `json:"ends_at" binding:"required"`
}

type postRequest struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content" binding:"required"`
	IsTeam  bool   `json:"is_team"`
}

func (s *Server) listEvents(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	events, err := s.content.ListEvents(ctx, limit)
	if err != nil {
		s.contentError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) createEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_request", "message": err.Error()}})
		return
	}
	if !req.EndsAt.After(req.StartsAt) {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_request", "message": "ends_at must be after starts_at"}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	event, err := s.content.CreateEvent(ctx, &content.Event{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	})
	if err != nil {
		s.contentError(c, err)
		return
	}

	c.JSON(http.StatusCreated, event)
}

func (s *Server) updateEvent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_request", "message": "invalid id"}})
		return
	}

	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_request", "message": err.Error()}})
		return
	}
	if !req.EndsAt.After(req.StartsAt) {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_request", "message": "ends_at must be after starts_at"}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	event, err := s.content.UpdateEvent(ctx, id, &content.Event{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	})
	if err != nil {
		s.contentError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

func (s *Server) deleteEvent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_request", "message": "invalid id"}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	if err := s.content.DeleteEvent(ctx, id); err != nil {
		s.contentError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (s *Server) listPosts(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	posts, err := s.content.ListPosts(ctx, limit)
	if err != nil {
		s.contentError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (s *Server) createPost(c *gin.Context) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_request", "message": err.Error()}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	post, err := s.content.CreatePost(ctx, &content.Post{
		Title:   req.Title,
		Content: req.Content,
		IsTeam:  req.IsTeam,
	})
	if err != nil {
		s.contentError(c, err)
		return
	}

	c.JSON(http.StatusCreated, post)
}

func (s *Server) updatePost(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_request", "message": "invalid id"}})
		return
	}

	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_request", "message": err.Error()}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	post, err := s.content.UpdatePost(ctx, id, &content.Post{
		Title:   req.Title,
		Content: req.Content,
		IsTeam:  req.IsTeam,
	})
	if err != nil {
		s.contentError(c, err)
		return
	}

	c.JSON(http.StatusOK, post)
}

func (s *Server) deletePost(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_request", "message": "invalid id"}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	if err := s.content.DeletePost(ctx, id); err != nil {
		s.contentError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (s *Server) contentError(c *gin.Context, err error) {
	if errors.Is(err, content.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "not_found", "message": "not found"}})
		return
	}
	s.log.Error("content_error", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "db_error", "message": "something went wrong"}})
}
