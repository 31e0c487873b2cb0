package util

import (
	"github.com/gin-gonic/gin"
)

const (
	UserIDKey   = "x-user-id"
	UsernameKey = "x-user-name"
)

func SetJWTContext(c *gin.Context, msg JWTMessage) {
	c.Set(UserIDKey, msg.UserID)
	c.Set(UsernameKey, msg.Username)
}

func GetToken(c *gin.Context) JWTMessage {
	return JWTMessage{
		UserID:   c.GetUint(UserIDKey),
		Username: c.GetString(UsernameKey),
	}
}
