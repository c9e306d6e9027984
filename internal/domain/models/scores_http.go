package models

import "encoding/json"

// Requests for score HTTP endpoints.

type WalletScoreRequest struct {
	Wallet  string `param:"wallet" validate:"required"`
	Explain bool   `query:"explain" json:"explain"`
}

// ListScoresRequest pages the latest run. Score bounds are read from the
// query string separately because zero is a meaningful bound.
type ListScoresRequest struct {
	Limit  int `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
	Offset int `query:"offset" json:"offset" validate:"gte=0"`
}

// ScoreBatchRequest carries raw records for ad-hoc scoring. Each element is
// decoded on its own so one malformed record is dropped and counted instead
// of failing the batch.
type ScoreBatchRequest struct {
	Records []json.RawMessage `json:"records" validate:"required,min=1,max=50000"`
	Explain bool              `json:"explain"`
}

type ScoreBatchResponse struct {
	Stats  RunStats      `json:"stats"`
	Scores []ScoreRecord `json:"scores"`
}

type RunAccepted struct {
	Queued bool        `json:"queued"`
	Run    *RunSummary `json:"run,omitempty"`
}
