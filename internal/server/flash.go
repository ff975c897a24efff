package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const flashCookie = "flash"

// setFlash attaches a one-shot message that the next request to / consumes.
func setFlash(c *gin.Context, msg string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookie, msg, 0, "/", "", false, true)
}

func popFlash(c *gin.Context) []string {
	msg, err := c.Cookie(flashCookie)
	if err != nil || msg == "" {
		return []string{}
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookie, "", -1, "/", "", false, true)
	return []string{msg}
}
