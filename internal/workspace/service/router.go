package service

import (
	"context"
	"fmt"
	"time"

	"codearena/internal/workspace/model"
	"codearena/internal/workspace/result"
	apperrors "codearena/pkg/errors"
	"codearena/pkg/utils/logger"

	"go.uber.org/zap"
)

// DefaultRedirectDelay is how long a contest submission result stays on screen.
const DefaultRedirectDelay = 3 * time.Second

// Judge executes code. Every call answers with the judge's raw payload.
type Judge interface {
	RunProbe(ctx context.Context, problemID, language, code string) (model.RawResult, error)
	SubmitSolo(ctx context.Context, problemID, language, code string) (model.RawResult, error)
	SubmitMatch(ctx context.Context, matchID, language, code string) (model.RawResult, error)
	SubmitContest(ctx context.Context, contestID, problemID, language, code string) (model.RawResult, error)
}

// Submission is the code captured from a session at request time.
type Submission struct {
	Mode      model.Mode
	ProblemID string
	Language  string
	Code      string
}

// Redirect asks the controller to navigate away after a delay.
type Redirect struct {
	Target string
	After  time.Duration
}

// RouteResult is the normalized answer of a submission plus its mode specific follow-ups.
type RouteResult struct {
	Outcome      model.TestOutcome
	ContestScore *model.ContestScore
	Redirect     *Redirect
}

// SubmissionRouter dispatches runs and submissions to the judge operation of the session mode.
type SubmissionRouter struct {
	judge         Judge
	bridge        *NotificationBridge
	redirectDelay time.Duration
}

func NewSubmissionRouter(judge Judge, bridge *NotificationBridge, redirectDelay time.Duration) *SubmissionRouter {
	if redirectDelay <= 0 {
		redirectDelay = DefaultRedirectDelay
	}
	return &SubmissionRouter{judge: judge, bridge: bridge, redirectDelay: redirectDelay}
}

// Run executes the code against the first sample case. Runs behave the same in every mode.
func (r *SubmissionRouter) Run(ctx context.Context, sub Submission) (model.TestOutcome, error) {
	raw, err := r.judge.RunProbe(ctx, sub.ProblemID, sub.Language, sub.Code)
	if err != nil {
		return model.TestOutcome{}, judgeFailure(err)
	}
	raw.Shape = model.ShapeProbe
	return result.Normalize(raw), nil
}

// Submit sends the code to the judge operation of its mode.
func (r *SubmissionRouter) Submit(ctx context.Context, sub Submission) (RouteResult, error) {
	var (
		raw model.RawResult
		err error
		res RouteResult
	)
	switch mode := sub.Mode.(type) {
	case model.Contest:
		raw, err = r.judge.SubmitContest(ctx, mode.ContestID, sub.ProblemID, sub.Language, sub.Code)
		if err != nil {
			return RouteResult{}, judgeFailure(err)
		}
		raw.Shape = model.ShapeFull
		if score, ok := result.ContestScore(raw); ok {
			res.ContestScore = &score
		}
		res.Redirect = &Redirect{Target: fmt.Sprintf("/contests/%s", mode.ContestID), After: r.redirectDelay}
	case model.Match:
		raw, err = r.judge.SubmitMatch(ctx, mode.MatchID, sub.Language, sub.Code)
		if err != nil {
			return RouteResult{}, judgeFailure(err)
		}
		if r.bridge != nil {
			if err := r.bridge.PublishSubmitted(ctx, mode); err != nil {
				logger.Warn(ctx, "notify opponent failed", zap.String("match_id", mode.MatchID), zap.Error(err))
			}
		}
	case model.Solo:
		raw, err = r.judge.SubmitSolo(ctx, sub.ProblemID, sub.Language, sub.Code)
		if err != nil {
			return RouteResult{}, judgeFailure(err)
		}
	default:
		return RouteResult{}, apperrors.Newf(apperrors.ModeNotSupported, "unsupported mode %T", sub.Mode)
	}
	raw.Shape = model.ShapeFull
	res.Outcome = result.Normalize(raw)
	return res, nil
}

// judgeFailure reports any judge error as JudgeUnavailable unless the judge already classified it.
func judgeFailure(err error) error {
	switch apperrors.GetCode(err) {
	case apperrors.JudgeUnavailable, apperrors.JudgeSystemError:
		return err
	}
	return apperrors.Wrapf(err, apperrors.JudgeUnavailable, "judge unavailable: %v", err)
}
