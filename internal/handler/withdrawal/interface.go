package withdrawal

import "github.com/gin-gonic/gin"

type IHandler interface {
	Request(c *gin.Context)
	ListMine(c *gin.Context)
	GetMine(c *gin.Context)
}
