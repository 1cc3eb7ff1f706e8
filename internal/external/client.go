// Package external talks to the ranking (bandit) and NLP services. Every
// call is best-effort: the *OrFallback helpers never return an error and
// substitute a local default when a service is slow, down or malformed.
package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/stay-reservation/internal/model"
	"github.com/iliyamo/stay-reservation/internal/ranking"
)

// DefaultTimeout bounds a single call to either service.
const DefaultTimeout = 3 * time.Second

// Fallback values used when a service cannot answer.
const (
	NeutralLabel  = "neutral"
	NeutralScore  = 0.5
	UnknownRisk   = "unknown"
	maxErrorBytes = 512
)

// Client calls the bandit and NLP services. A zero base URL disables that
// service; its calls fail fast and the fallbacks apply.
type Client struct {
	banditURL string
	nlpURL    string
	client    *http.Client
	logger    *logrus.Logger
}

// New returns a Client with the given per-request timeout.
func New(banditURL, nlpURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		banditURL: strings.TrimRight(banditURL, "/"),
		nlpURL:    strings.TrimRight(nlpURL, "/"),
		client:    newHTTPClient(timeout),
		logger:    logger,
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ResponseHeaderTimeout: timeout,
			MaxIdleConns:          50,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// RankRequest asks the bandit to order candidate listings for a user.
type RankRequest struct {
	UserID     uint64                   `json:"userId,omitempty"`
	ListingIDs []uint64                 `json:"listingIds"`
	Context    model.InteractionContext `json:"context"`
}

// RankResult is the bandit's ordering. Explanations are passed through
// untouched.
type RankResult struct {
	RankedIDs    []uint64       `json:"rankedIds"`
	Explanations map[string]any `json:"explanations,omitempty"`
	Fallback     bool           `json:"fallback"`
}

// Rank asks the bandit to reorder req.ListingIDs. The returned order only
// ever contains ids that were asked for.
func (c *Client) Rank(ctx context.Context, req RankRequest) (RankResult, error) {
	var resp struct {
		RankedIDs    model.IDList   `json:"rankedIds"`
		Explanations map[string]any `json:"explanations"`
	}
	if err := c.post(ctx, c.banditURL, "/rank", req, &resp); err != nil {
		return RankResult{}, err
	}
	if resp.RankedIDs == nil {
		return RankResult{}, fmt.Errorf("bandit rank: missing rankedIds")
	}
	return RankResult{
		RankedIDs:    ranking.Reorder(req.ListingIDs, resp.RankedIDs),
		Explanations: resp.Explanations,
	}, nil
}

// RankOrFallback returns the bandit order, or the input order on failure.
func (c *Client) RankOrFallback(ctx context.Context, req RankRequest) RankResult {
	res, err := c.Rank(ctx, req)
	if err != nil {
		c.logger.WithError(err).WithField("listings", len(req.ListingIDs)).Warn("bandit rank unavailable, keeping input order")
		ids := make([]uint64, len(req.ListingIDs))
		copy(ids, req.ListingIDs)
		return RankResult{RankedIDs: ids, Explanations: map[string]any{}, Fallback: true}
	}
	return res
}

// Feedback is the reward signal forwarded to the bandit.
type Feedback struct {
	UserID    uint64                   `json:"userId"`
	ListingID uint64                   `json:"listingId"`
	Action    model.Action             `json:"action"`
	Reward    float64                  `json:"reward"`
	Context   model.InteractionContext `json:"context"`
}

// SendFeedback forwards an interaction to the bandit.
func (c *Client) SendFeedback(ctx context.Context, fb Feedback) error {
	return c.post(ctx, c.banditURL, "/feedback", fb, nil)
}

// Sentiment is the NLP service's verdict on review text.
type Sentiment struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Sentiment scores text.
func (c *Client) Sentiment(ctx context.Context, text string) (Sentiment, error) {
	var s Sentiment
	if err := c.post(ctx, c.nlpURL, "/sentiment", map[string]string{"text": text}, &s); err != nil {
		return Sentiment{}, err
	}
	if s.Label == "" {
		return Sentiment{}, fmt.Errorf("nlp sentiment: missing label")
	}
	return s, nil
}

// SentimentOrFallback returns a neutral verdict when scoring fails.
func (c *Client) SentimentOrFallback(ctx context.Context, text string) Sentiment {
	s, err := c.Sentiment(ctx, text)
	if err != nil {
		c.logger.WithError(err).Warn("sentiment unavailable, using neutral")
		return Sentiment{Label: NeutralLabel, Score: NeutralScore}
	}
	return s
}

// RiskRequest describes a booking for cancellation-risk scoring.
type RiskRequest struct {
	Price              float64 `json:"price"`
	DaysUntilCheckIn   int     `json:"days_until_checkin"`
	IsNewUser          bool    `json:"is_new_user"`
	PriorCancellations int     `json:"prior_cancellations"`
}

// Risk is the cancellation-risk verdict.
type Risk struct {
	Risk  string  `json:"risk"`
	Score float64 `json:"score"`
}

// Risk scores a booking's cancellation risk.
func (c *Client) Risk(ctx context.Context, req RiskRequest) (Risk, error) {
	var r Risk
	if err := c.post(ctx, c.nlpURL, "/risk", req, &r); err != nil {
		return Risk{}, err
	}
	if r.Risk == "" {
		return Risk{}, fmt.Errorf("nlp risk: missing risk")
	}
	return r, nil
}

// RiskOrFallback returns {unknown, 0} when scoring fails.
func (c *Client) RiskOrFallback(ctx context.Context, req RiskRequest) Risk {
	r, err := c.Risk(ctx, req)
	if err != nil {
		c.logger.WithError(err).Warn("risk scoring unavailable")
		return Risk{Risk: UnknownRisk, Score: 0}
	}
	return r
}

func (c *Client) post(ctx context.Context, base, path string, in, out any) error {
	if base == "" {
		return fmt.Errorf("%s: service not configured", path)
	}
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		return fmt.Errorf("%s: service error: %d - %s", path, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
