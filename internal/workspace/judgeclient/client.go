// Package judgeclient talks to the judge backend and the problem service over HTTP.
package judgeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"codearena/internal/workspace/model"
	apperrors "codearena/pkg/errors"
	"codearena/pkg/utils/contextkey"
	"codearena/pkg/utils/logger"
	"codearena/pkg/utils/response"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultTimeout = 30 * time.Second
	traceHeader    = "X-Trace-ID"
)

// ResponseInfo carries response details.
type ResponseInfo struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Client is the HTTP judge and problem source.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	tokenProvider func() string
}

func New(baseURL string, timeout time.Duration, tokenProvider func() string) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:       baseURL,
		httpClient:    &http.Client{Timeout: timeout},
		tokenProvider: tokenProvider,
	}
}

type runRequest struct {
	ProblemID string `json:"problem_id"`
	Language  string `json:"language"`
	Code      string `json:"code"`
	CaseIndex int    `json:"case_index"`
}

type submitRequest struct {
	ProblemID string `json:"problem_id,omitempty"`
	Language  string `json:"language"`
	Code      string `json:"code"`
}

// RunProbe runs the code against the first sample case.
func (c *Client) RunProbe(ctx context.Context, problemID, language, code string) (model.RawResult, error) {
	body := runRequest{ProblemID: problemID, Language: language, Code: code, CaseIndex: 0}
	return c.judge(ctx, model.ShapeProbe, "/api/v1/judge/run", body)
}

func (c *Client) SubmitSolo(ctx context.Context, problemID, language, code string) (model.RawResult, error) {
	body := submitRequest{ProblemID: problemID, Language: language, Code: code}
	return c.judge(ctx, model.ShapeFull, "/api/v1/submissions", body)
}

func (c *Client) SubmitMatch(ctx context.Context, matchID, language, code string) (model.RawResult, error) {
	path := fmt.Sprintf("/api/v1/matches/%s/submissions", url.PathEscape(matchID))
	return c.judge(ctx, model.ShapeFull, path, submitRequest{Language: language, Code: code})
}

func (c *Client) SubmitContest(ctx context.Context, contestID, problemID, language, code string) (model.RawResult, error) {
	path := fmt.Sprintf("/api/v1/contests/%s/problems/%s/submissions", url.PathEscape(contestID), url.PathEscape(problemID))
	return c.judge(ctx, model.ShapeFull, path, submitRequest{Language: language, Code: code})
}

// GetProblem fetches a problem statement. A missing problem is reported as ProblemNotFound.
func (c *Client) GetProblem(ctx context.Context, problemID string) (model.Problem, error) {
	path := "/api/v1/problems/" + url.PathEscape(problemID)
	info, err := c.Do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return model.Problem{}, apperrors.Wrapf(err, apperrors.ServiceUnavailable, "fetch problem %s failed", problemID)
	}
	if info.StatusCode == http.StatusNotFound {
		return model.Problem{}, apperrors.Newf(apperrors.ProblemNotFound, "problem %s not found", problemID)
	}
	var env response.Response
	if err := json.Unmarshal(info.Body, &env); err != nil {
		return model.Problem{}, apperrors.Wrapf(err, apperrors.MalformedJudgeResponse, "decode problem %s failed", problemID)
	}
	if !env.OK() {
		if env.Code == apperrors.ProblemNotFound || env.Code == apperrors.NotFound {
			return model.Problem{}, apperrors.Newf(apperrors.ProblemNotFound, "problem %s not found", problemID)
		}
		return model.Problem{}, env.Err(apperrors.ServiceUnavailable)
	}
	var problem model.Problem
	if err := json.Unmarshal(env.Data, &problem); err != nil {
		return model.Problem{}, apperrors.Wrapf(err, apperrors.MalformedJudgeResponse, "decode problem %s failed", problemID)
	}
	if problem.ID == "" {
		problem.ID = problemID
	}
	return problem, nil
}

// judge posts a judge request. Transport failures, 4xx answers and failed envelopes
// become JudgeUnavailable. A 5xx answer or a JudgeSystemError envelope becomes JudgeSystemError.
// Any 2xx body that is not an envelope is handed on as the raw result.
func (c *Client) judge(ctx context.Context, shape model.Shape, path string, payload any) (model.RawResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return model.RawResult{}, apperrors.Wrap(err, apperrors.InternalServerError)
	}
	info, err := c.Do(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return model.RawResult{}, apperrors.Wrapf(err, apperrors.JudgeUnavailable, "judge request failed")
	}
	logger.Debug(ctx, "judge call finished",
		zap.String("path", path),
		zap.Int("status", info.StatusCode),
		zap.Duration("duration", info.Duration),
	)

	var env response.Response
	decodeErr := json.Unmarshal(info.Body, &env)
	if info.StatusCode >= http.StatusBadRequest {
		msg := fmt.Sprintf("judge answered with status %d", info.StatusCode)
		if decodeErr == nil && env.Message != "" {
			msg = env.Message
		}
		code := apperrors.JudgeUnavailable
		if info.StatusCode >= http.StatusInternalServerError {
			code = apperrors.JudgeSystemError
		}
		return model.RawResult{}, apperrors.Newf(code, "%s", msg).
			WithDetail("status", info.StatusCode)
	}
	if decodeErr != nil || (env.Code == 0 && env.Message == "" && env.Data == nil) {
		return model.RawResult{Shape: shape, Body: info.Body}, nil
	}
	if !env.OK() {
		code := apperrors.JudgeUnavailable
		if env.Code == apperrors.JudgeSystemError {
			code = apperrors.JudgeSystemError
		}
		return model.RawResult{}, apperrors.Newf(code, "%s", envelopeMessage(env)).
			WithDetail("judge_code", int(env.Code))
	}
	return model.RawResult{Shape: shape, Body: env.Data}, nil
}

func envelopeMessage(env response.Response) string {
	if env.Message != "" {
		return env.Message
	}
	return env.Code.Message()
}

// Do sends one request and returns the raw response.
func (c *Client) Do(ctx context.Context, method, path string, headers map[string]string, body []byte) (ResponseInfo, error) {
	var info ResponseInfo

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return info, fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(traceHeader, traceID(ctx))
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	if c.tokenProvider != nil {
		if token := c.tokenProvider(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	info.Duration = time.Since(start)
	if err != nil {
		return info, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	info.StatusCode = resp.StatusCode
	info.Headers = resp.Header
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return info, fmt.Errorf("read response body failed: %w", err)
	}
	info.Body = bodyBytes
	return info, nil
}

func traceID(ctx context.Context) string {
	if ctx != nil {
		if v, ok := ctx.Value(contextkey.TraceID).(string); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
