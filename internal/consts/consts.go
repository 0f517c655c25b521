package consts

const (
	USDCDecimals = 6

	// USDC identities per network
	SolanaUSDCMint      = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	BaseUSDCContract    = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	PolygonUSDCContract = "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"

	SolanaExplorerTxURL  = "https://solscan.io/tx/"
	BaseExplorerTxURL    = "https://basescan.org/tx/"
	PolygonExplorerTxURL = "https://polygonscan.com/tx/"

	DefaultSolanaRPCEndpoint  = "https://api.mainnet-beta.solana.com"
	DefaultBaseRPCEndpoint    = "https://mainnet.base.org"
	DefaultPolygonRPCEndpoint = "https://polygon-rpc.com"
)

const (
	WithdrawalMinAmount = "10"
	WithdrawalMaxAmount = "50"
	WithdrawalFee       = "0.5"
)

const (
	DefaultRPCTimeoutSeconds = 12
	DefaultReconcileSchedule = "@every 5m"
	DefaultVerdictCacheTTL   = 10 // minutes

	ReconciliationJobName = "settlement_reconciliation"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	ContextKeyUserID = "user_id"
	ContextKeyRole   = "role"
)
