package usecase

import (
	"context"

	"WalletScore/pkg/logger"
	"WalletScore/pkg/queue"
)

// ScoreRunJobType is the queue message type that requests a rescoring run.
const ScoreRunJobType = "score.run"

// RunRequest is the queued payload.
type RunRequest struct {
	Reason string `json:"reason"`
}

// ScoreRunJob executes queued run requests.
type ScoreRunJob struct {
	runner *ScoreRunner
	logger *logger.Logger
}

func NewScoreRunJob(runner *ScoreRunner, lgr *logger.Logger) *ScoreRunJob {
	return &ScoreRunJob{runner: runner, logger: lgr}
}

func (j *ScoreRunJob) Name() string { return "score-run" }

func (j *ScoreRunJob) Type() string { return ScoreRunJobType }

func (j *ScoreRunJob) Handle(ctx context.Context, payload interface{}) error {
	req, err := queue.ParsePayload[RunRequest](payload)
	if err != nil {
		return err
	}
	res, err := j.runner.RunOnce(ctx)
	if err != nil {
		return err
	}
	j.logger.Info("queued run finished",
		logger.String("reason", req.Reason),
		logger.String("run_id", res.Summary.ID))
	return nil
}

var _ queue.Job = (*ScoreRunJob)(nil)
