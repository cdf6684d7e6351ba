package constant

import "os"

// <NodeDir>/                    (e.g., /home/user/.svmtx)
// └── config/
//	└── svmtx_config.json
// └── databases/
//	└── journal.db

const (
	NodeDir = ".svmtx"

	ConfigSubdir   = "config"
	ConfigFileName = "svmtx_config.json"

	DatabasesSubdir = "databases"
	JournalDBName   = "journal.db"
)

var DefaultNodeHome = os.ExpandEnv("$HOME/") + NodeDir

// Environment variables that override the loaded config.
const (
	EnvRPCURLs    = "SVMTX_RPC_URLS"
	EnvCommitment = "SVMTX_COMMITMENT"
	EnvLogLevel   = "SVMTX_LOG_LEVEL"
)

// Commitment levels accepted by the ledger RPC.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// Load-balancing strategies of the RPC endpoint pool.
const (
	StrategyRoundRobin = "round-robin"
	StrategyWeighted   = "weighted"
)
