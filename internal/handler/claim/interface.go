package claim

import "github.com/gin-gonic/gin"

type IHandler interface {
	Submit(c *gin.Context)
	ListMine(c *gin.Context)
	GetMine(c *gin.Context)
}
