package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hoisting/internal/events"
	"hoisting/internal/models"
	"hoisting/internal/storage"
)

const (
	msgAlreadyVoted = "You already voted for this."
	msgUnknownIP    = "Could not determine your address."
)

// handleVote records one vote per client IP per image and always redirects
// to the root unless the image does not exist.
func (s *Server) handleVote(c *gin.Context) {
	const op = "server.handleVote"

	if c.Request.Method != http.MethodPost {
		c.Redirect(http.StatusFound, "/")
		return
	}

	img, ok := s.lookupImage(c, op)
	if !ok {
		return
	}

	ip := c.ClientIP()
	if ip == "" {
		setFlash(c, msgUnknownIP)
		c.Redirect(http.StatusFound, "/")
		return
	}

	err := s.store.SaveVote(c.Request.Context(), &models.Vote{ImageID: img.ID, IP: ip})
	switch {
	case errors.Is(err, storage.ErrAlreadyVoted):
		logFor(c).Info("duplicate vote", "image_id", img.ID, "ip", ip)
		setFlash(c, msgAlreadyVoted)
	case errors.Is(err, storage.ErrNotFound):
		notFound(c)
		return
	case err != nil:
		internalError(c, op, err)
		return
	default:
		s.publish(c, events.Event{Type: events.TypeVoteRecorded, ImageID: img.ID, IP: ip})
	}

	c.Redirect(http.StatusFound, "/")
}

func (s *Server) handleCountVotes(c *gin.Context) {
	const op = "server.handleCountVotes"

	img, ok := s.lookupImage(c, op)
	if !ok {
		return
	}

	n, err := s.store.CountVotes(c.Request.Context(), img.ID)
	if err != nil {
		internalError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": img.ID, "votes": n})
}
