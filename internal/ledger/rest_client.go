package ledger

import (
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

const (
	// requestTimeout bounds a single round trip to the ledger node.
	requestTimeout = 30 * time.Second
)

// RestClient reads typed transaction history from the ledger node's REST
// interface.
type RestClient struct {
	logger  *logger.Logger
	baseURL string
	client  *http.Client
}

// NewRestClient creates a new RestClient instance.
func NewRestClient(baseURL string, logger *logger.Logger) *RestClient {
	return &RestClient{
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// GetTransactionsHistory fetches one page of the address's transaction
// history. The response is untrusted external input: an undecodable body
// surfaces as a MalformedResponseError, never a panic.
func (r *RestClient) GetTransactionsHistory(ctx context.Context, address models.Address, offset, limit uint32) ([]models.HistoryEntry, error) {
	endpoint := fmt.Sprintf("%s/api/v0.1/account/%s/history/%d/%d", r.baseURL, address.Hex(), offset, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build history request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: history request failed: %v", models.ErrLedgerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: history endpoint returned status %d", models.ErrLedgerUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read history response: %v", models.ErrLedgerUnavailable, err)
	}

	var entries []models.HistoryEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		r.logger.Error("Ledger returned undecodable history ", "endpoint ", endpoint, " payload ", string(body))
		return nil, &models.MalformedResponseError{Endpoint: endpoint, Payload: body, Err: err}
	}

	return entries, nil
}
