package links

import "github.com/gin-gonic/gin"

// IHandler serves the one-click links sent to administrators. GET renders a
// confirmation form; only the POST it submits changes state.
type IHandler interface {
	ConfirmApproveClaim(c *gin.Context)
	ApproveClaim(c *gin.Context)
	ConfirmRejectClaim(c *gin.Context)
	RejectClaim(c *gin.Context)

	ConfirmProcessWithdrawal(c *gin.Context)
	ProcessWithdrawal(c *gin.Context)
	ConfirmRejectWithdrawal(c *gin.Context)
	RejectWithdrawal(c *gin.Context)
}
