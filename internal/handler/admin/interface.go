package admin

import "github.com/gin-gonic/gin"

type IHandler interface {
	ListClaims(c *gin.Context)
	VerifyClaim(c *gin.Context)
	NotifyClaim(c *gin.Context)
	ApproveClaim(c *gin.Context)
	RejectClaim(c *gin.Context)

	ListWithdrawals(c *gin.Context)
	ProcessWithdrawal(c *gin.Context)
	RejectWithdrawal(c *gin.Context)

	Stats(c *gin.Context)
	Reconciliation(c *gin.Context)
}
