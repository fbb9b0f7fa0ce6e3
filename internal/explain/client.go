// Package explain talks to the optional score explanation service.
package explain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// ErrUnavailable wraps every failure to obtain an explanation.
var ErrUnavailable = errors.New("explanation service unavailable")

type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logrus.Entry
}

func NewClient(baseURL string, timeout time.Duration, log *logrus.Entry) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log.WithField("component", "explain"),
	}
}

type explainRequest struct {
	WalletID string `json:"wallet_id"`
}

type explainResponse struct {
	Status       string `json:"status"`
	Explanation  string `json:"explanation"`
	ErrorMessage string `json:"error_message"`
}

// Explain asks the service why user scored the way it did.
func (c *Client) Explain(ctx context.Context, user common.Address) (string, error) {
	body, err := json.Marshal(explainRequest{WalletID: user.Hex()})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/explain", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(msg))
	}

	var out explainResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if out.Status != "success" {
		return "", fmt.Errorf("%w: %s", ErrUnavailable, out.ErrorMessage)
	}

	c.log.WithField("user", user.Hex()).Debug("Score explanation fetched")
	return out.Explanation, nil
}
