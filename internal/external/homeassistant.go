package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"zonetime/internal/types"
)

// HomeAssistantConfig configures the REST history adapter.
type HomeAssistantConfig struct {
	BaseURL string
	// Token is a long-lived access token.
	Token       string
	HTTPClient  *http.Client
	RetryPolicy RetryPolicy
	Options     []BaseClientOption
}

// HomeAssistantClient reads state history through the Home Assistant REST
// API. It satisfies scheduler.HistoryFetcher and scheduler.ZoneResolver.
type HomeAssistantClient struct {
	base    *BaseClient
	baseURL string
	token   string
}

// maxHistoryBody caps a history response; 90 days of a chatty person entity
// stays far below this.
const maxHistoryBody = 32 << 20

// NewHomeAssistantClient creates a client for the instance at cfg.BaseURL.
func NewHomeAssistantClient(cfg HomeAssistantConfig) *HomeAssistantClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	policy := cfg.RetryPolicy
	if policy == (RetryPolicy{}) {
		policy = DefaultRetryPolicy()
	}
	return &HomeAssistantClient{
		base:    NewBaseClient(httpClient, "homeassistant", policy, "zonetime/1.0", cfg.Options...),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
	}
}

// historyState is one element of a /api/history/period response. With
// minimal_response only the first element carries entity_id and
// last_updated; the rest carry state and last_changed.
type historyState struct {
	EntityID    string `json:"entity_id,omitempty"`
	State       string `json:"state"`
	LastChanged string `json:"last_changed"`
	LastUpdated string `json:"last_updated,omitempty"`
}

// Fetch returns the entity's state changes in [start, end]. Home Assistant
// reports the state in effect at start as the first element, stamped with
// start itself.
func (c *HomeAssistantClient) Fetch(ctx context.Context, entityID string, start, end time.Time) ([]types.Observation, error) {
	q := url.Values{}
	q.Set("filter_entity_id", entityID)
	q.Set("end_time", end.UTC().Format(time.RFC3339))
	q.Set("significant_changes_only", "0")
	endpoint := fmt.Sprintf("%s/api/history/period/%s?%s&minimal_response&no_attributes",
		c.baseURL, url.PathEscape(start.UTC().Format(time.RFC3339)), q.Encode())

	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, "history")
	}

	var series [][]historyState
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxHistoryBody)).Decode(&series); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamHistory, "failed to decode history response", err)
	}

	var obs []types.Observation
	for _, entity := range series {
		for i, s := range entity {
			if i == 0 && s.EntityID != "" && s.EntityID != entityID {
				break
			}
			ts, err := parseHATime(s)
			if err != nil {
				return nil, types.NewAppErrorWithDetails(types.ErrCodeUpstreamHistory,
					"invalid timestamp in history response", err, map[string]any{"index": i})
			}
			obs = append(obs, types.Observation{State: s.State, Timestamp: ts})
		}
	}
	return obs, nil
}

// ZoneExists reports whether Home Assistant currently has a state for the
// zone entity.
func (c *HomeAssistantClient) ZoneExists(ctx context.Context, zoneID string) (bool, error) {
	resp, err := c.get(ctx, c.baseURL+"/api/states/"+url.PathEscape(zoneID))
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, statusError(resp, "zone lookup")
	}
}

func (c *HomeAssistantClient) get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	return c.base.Do(req)
}

func statusError(resp *http.Response, what string) *types.AppError {
	code := types.ErrCodeUpstreamHistory
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		code = types.ErrCodeUpstreamUnavailable
	}
	return types.NewAppErrorWithDetails(code,
		fmt.Sprintf("home assistant %s returned %d", what, resp.StatusCode), nil,
		map[string]any{"status": resp.StatusCode})
}

func parseHATime(s historyState) (time.Time, error) {
	raw := s.LastChanged
	if raw == "" {
		raw = s.LastUpdated
	}
	return time.Parse(time.RFC3339Nano, raw)
}
