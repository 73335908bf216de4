package credits

import "time"

const (
	operationRefill     = "refill"
	operationApplyDebit = "apply_debit"
	operationHireDebit  = "hire_debit"
	operationTopUp      = "top_up"

	operationStatusOK     = "ok"
	operationStatusError  = "error"
	operationStatusExempt = "exempt"

	defaultStartingCredits int64 = 5
	defaultRefillCredits   int64 = 5
	defaultRefillInterval        = 30 * 24 * time.Hour
	defaultApplicationCost int64 = 1
	defaultHireCost        int64 = 1
	defaultTopUpCredits    int64 = 2

	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)
