package ai

import (
	"sync/atomic"

	"github.com/kiranshivaraju/medinventory/pkg/models"
)

// Usage counts requests and tokens for cost estimation. It lives as long as the
// adapters sharing it; construct a new one to start from zero.
type Usage struct {
	requests atomic.Int64
	tokens   atomic.Int64
}

// NewUsage returns a zeroed counter.
func NewUsage() *Usage {
	return &Usage{}
}

// Record adds one completed request.
func (u *Usage) Record(t models.TokenUsage) {
	u.requests.Add(1)
	u.tokens.Add(t.Total())
}

// Requests returns the number of recorded requests.
func (u *Usage) Requests() int64 { return u.requests.Load() }

// Tokens returns the number of recorded tokens.
func (u *Usage) Tokens() int64 { return u.tokens.Load() }

// Snapshot reports the counters with a cost estimate at costPer1K per thousand tokens.
func (u *Usage) Snapshot(costPer1K float64) models.UsageStats {
	tokens := u.Tokens()
	return models.UsageStats{
		Requests:      u.Requests(),
		Tokens:        tokens,
		EstimatedCost: float64(tokens) / 1000 * costPer1K,
	}
}
