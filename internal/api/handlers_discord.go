package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"clubsite/internal/accounts"
	"clubsite/internal/linker"
)

func (s *Server) link(c *gin.Context) {
	var req struct {
		AccessToken string `json:"access_token" binding:"required"`
		ExpiresIn   int    `json:"expires_in" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_request", "message": "access_token and expires_in are required"}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	acct, err := s.linker.Link(ctx, s.sessionFrom(c), linker.OAuthGrant{
		AccessToken: req.AccessToken,
		ExpiresIn:   req.ExpiresIn,
	})
	if err != nil {
		s.workflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"linked":     true,
		"discord_id": acct.DiscordID,
		"username":   acct.Username,
	})
}

func (s *Server) unlink(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	if err := s.linker.Unlink(ctx, s.sessionFrom(c)); err != nil {
		s.workflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"linked": false})
}

func (s *Server) profile(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	sess := s.sessionFrom(c)
	acct, err := s.store.FindByUser(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, accounts.ErrNoAccount) {
			s.workflowError(c, linker.ErrNotFound)
			return
		}
		s.workflowError(c, err)
		return
	}

	profile, err := s.linker.FreshProfile(ctx, acct)
	if err != nil {
		s.workflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

func (s *Server) memberCount(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	counts, err := s.linker.MemberCount(ctx)
	if err != nil {
		s.workflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, counts)
}

// workflowError maps the workflow failure taxonomy onto HTTP statuses. The
// caller only ever sees a generic classification; detail stays in the logs.
func (s *Server) workflowError(c *gin.Context, err error) {
	var upstream *linker.UpstreamError
	var persistence *linker.PersistenceError

	switch {
	case errors.Is(err, linker.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "unauthenticated", "message": "a session is required"}})
	case errors.Is(err, linker.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "not_found", "message": "no linked account"}})
	case errors.As(err, &upstream):
		s.log.Warn("upstream_error", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": gin.H{"code": "upstream_error", "message": "discord is unavailable"}})
	case errors.As(err, &persistence):
		s.log.Error("persistence_error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "internal_error", "message": "something went wrong"}})
	default:
		s.log.Error("unexpected_error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "internal_error", "message": "something went wrong"}})
	}
}
