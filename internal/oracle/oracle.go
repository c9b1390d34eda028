package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/subvia/subscriptor/internal/models"
	"github.com/subvia/subscriptor/pkg/logger"
)

// Client talks to the Community Oracle, the external authority on which
// communities exist, how many tokens a subscribed user is granted, and
// which minting transactions get countersigned.
type Client struct {
	logger  *logger.Logger
	baseURL string
	client  *http.Client
}

// NewClient creates a new Community Oracle client.
func NewClient(baseURL string, logger *logger.Logger) *Client {
	return &Client{
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type grantedTokensRequest struct {
	User          models.Address `json:"user"`
	CommunityName string         `json:"communityName"`
}

type mintingSignatureRequest struct {
	User          models.Address  `json:"user"`
	CommunityName string          `json:"communityName"`
	MintingTx     json.RawMessage `json:"mintingTx"`
}

type mintingSignatureResponse struct {
	Signature json.RawMessage `json:"signature"`
}

// GrantedTokens returns the community token grant for a subscribed user.
func (c *Client) GrantedTokens(ctx context.Context, user models.Address, communityName string) (*models.GrantedTokens, error) {
	var granted models.GrantedTokens
	err := c.post(ctx, "/api/v0.1/granted_tokens", grantedTokensRequest{User: user, CommunityName: communityName}, &granted)
	if err != nil {
		return nil, err
	}
	return &granted, nil
}

// MintingSignature asks the oracle to countersign a minting transaction.
func (c *Client) MintingSignature(ctx context.Context, user models.Address, communityName string, mintingTx json.RawMessage) (json.RawMessage, error) {
	var response mintingSignatureResponse
	err := c.post(ctx, "/api/v0.1/get_minting_signature", mintingSignatureRequest{
		User:          user,
		CommunityName: communityName,
		MintingTx:     mintingTx,
	}, &response)
	if err != nil {
		return nil, err
	}
	return response.Signature, nil
}

func (c *Client) post(ctx context.Context, path string, request interface{}, response interface{}) error {
	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to encode oracle request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build oracle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("community oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read oracle response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Community oracle rejected request ", "path ", path, " status ", resp.StatusCode, " body ", string(body))
		return fmt.Errorf("community oracle returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, response); err != nil {
		return fmt.Errorf("failed to decode oracle response: %w", err)
	}

	return nil
}
