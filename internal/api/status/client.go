package status

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
)

// Client is an HTTP client of the status API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient creates a client for the server at baseURL. token is sent on
// admin requests.
func NewClient(httpClient *http.Client, baseURL, token string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

// Players lists every active player.
func (c *Client) Players(ctx context.Context) ([]PlayerView, error) {
	var players []PlayerView
	if err := c.do(ctx, http.MethodGet, "/api/players", &players); err != nil {
		return nil, err
	}
	return players, nil
}

// Player returns the player of one guild, with its queue.
func (c *Client) Player(ctx context.Context, guildID string) (*PlayerView, error) {
	var player PlayerView
	if err := c.do(ctx, http.MethodGet, "/api/players/"+url.PathEscape(guildID), &player); err != nil {
		return nil, err
	}
	return &player, nil
}

// Action runs pause, resume, skip or stop on a guild's player.
func (c *Client) Action(ctx context.Context, guildID, action string) (*ActionResult, error) {
	var result ActionResult
	path := "/api/players/" + url.PathEscape(guildID) + "/" + url.PathEscape(action)
	if err := c.do(ctx, http.MethodPost, path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	if c.token != "" {
		req.Header.Set(AdminTokenHeader, c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s failed", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var failure ActionResult
		if json.NewDecoder(resp.Body).Decode(&failure) == nil && failure.Message != "" {
			return errors.Newf("%s (status %d)", failure.Message, resp.StatusCode)
		}
		return errors.Newf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}
