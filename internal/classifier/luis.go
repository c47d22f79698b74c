package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/avvvet/octotalk/internal/models"
)

// LuisClassifier queries a LUIS v2 prediction endpoint.
type LuisClassifier struct {
	endpoint string
	appID    string
	apiKey   string
	client   *http.Client
	log      *zap.Logger
}

func NewLuisClassifier(endpoint, appID, apiKey string, timeout time.Duration, log *zap.Logger) *LuisClassifier {
	return &LuisClassifier{
		endpoint: strings.TrimRight(endpoint, "/"),
		appID:    appID,
		apiKey:   apiKey,
		client: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

type luisResponse struct {
	Query            string       `json:"query"`
	TopScoringIntent *luisIntent  `json:"topScoringIntent"`
	Intents          []luisIntent `json:"intents"`
	Entities         []luisEntity `json:"entities"`
}

type luisIntent struct {
	Intent string  `json:"intent"`
	Score  float64 `json:"score"`
}

type luisEntity struct {
	Entity     string         `json:"entity"`
	Type       string         `json:"type"`
	StartIndex int            `json:"startIndex"`
	EndIndex   int            `json:"endIndex"`
	Score      float64        `json:"score"`
	Resolution map[string]any `json:"resolution"`
}

func (l *LuisClassifier) Classify(ctx context.Context, query Query) (models.Intent, error) {
	params := url.Values{}
	params.Set("subscription-key", l.apiKey)
	params.Set("verbose", "true")
	params.Set("timezoneOffset", strconv.Itoa(query.TimezoneOffset))
	params.Set("q", query.Text)

	reqURL := fmt.Sprintf("%s/luis/v2.0/apps/%s?%s", l.endpoint, url.PathEscape(l.appID), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return models.NoneIntent(), fmt.Errorf("failed to build classifier request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return models.NoneIntent(), fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.NoneIntent(), fmt.Errorf("failed to read classifier response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		l.log.Warn("Classifier returned non-200",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		return models.NoneIntent(), fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var parsed luisResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return models.NoneIntent(), fmt.Errorf("failed to parse classifier response: %w", err)
	}

	intent := toIntent(parsed)
	l.log.Debug("Classified message",
		zap.String("intent", intent.Name),
		zap.Float64("confidence", intent.Confidence),
		zap.Int("entities", len(intent.Entities)),
	)
	return intent, nil
}

func toIntent(r luisResponse) models.Intent {
	intent := models.NoneIntent()

	top := r.TopScoringIntent
	if top == nil && len(r.Intents) > 0 {
		top = &r.Intents[0]
	}
	if top != nil && top.Intent != "" {
		intent.Name = top.Intent
		intent.Confidence = top.Score
	}

	for _, e := range r.Entities {
		intent.Entities = append(intent.Entities, models.Entity{
			Type:  strings.TrimPrefix(e.Type, "builtin."),
			Value: entityValue(e),
		})
	}
	return intent
}

// entityValue prefers the canonical resolution over the matched text: the
// first list value for list entities, the resolved value for prebuilt ones.
func entityValue(e luisEntity) string {
	if values, ok := e.Resolution["values"].([]any); ok && len(values) > 0 {
		if s, ok := values[0].(string); ok {
			return s
		}
	}
	if v, ok := e.Resolution["value"].(string); ok && v != "" {
		return v
	}
	return e.Entity
}
