package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	cartCookie = "cart_id"
	cartHeader = "X-Cart-ID"
	cartMaxAge = 30 * 24 * time.Hour
)

// cartID берёт корзину из заголовка X-Cart-ID или cookie cart_id,
// иначе заводит новую и отдаёт её клиенту в cookie.
// Любая запись UUID (регистр, {...}, urn:uuid:) сводится к каноничной.
func (s *Server) cartID(c *gin.Context) string {
	u, err := uuid.Parse(c.GetHeader(cartHeader))
	if err != nil {
		raw, _ := c.Cookie(cartCookie)
		u, err = uuid.Parse(raw)
	}
	if err != nil {
		u = uuid.New()
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cartCookie, u.String(), int(cartMaxAge.Seconds()), "/", "", s.secureCookie, true)
	}
	id := u.String()
	c.Header(cartHeader, id)
	return id
}
