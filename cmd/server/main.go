package main

import (
	_ "github.com/labomba/deposit-settlement/docs"
	"github.com/labomba/deposit-settlement/internal/server"
)

// @title Deposit Settlement API
// @version 1.0
// @description USDC deposit verification and withdrawal settlement across Solana, Base and Polygon.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	server.Init()
}
