package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/subvia/subscriptor/internal/models"
	"github.com/subvia/subscriptor/pkg/logger"
)

// RpcClient submits transaction batches to the ledger node via its
// JSON-RPC interface.
type RpcClient struct {
	logger *logger.Logger
	rpcURL string
	client *http.Client
}

// NewRpcClient creates a new RpcClient instance.
func NewRpcClient(rpcURL string, logger *logger.Logger) *RpcClient {
	return &RpcClient{
		logger: logger,
		rpcURL: rpcURL,
		client: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

type jsonRPCRequest struct {
	ID      string        `json:"id"`
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type jsonRPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type jsonRPCResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *jsonRPCError   `json:"error"`
}

// SubmitTxsBatch submits the ordered batch atomically as a single RPC
// call and returns one transaction hash per input transaction, in order.
// A JSON-RPC error object surfaces as a SubmissionRejectedError carrying
// the node's reported reason.
func (r *RpcClient) SubmitTxsBatch(ctx context.Context, txs []models.TxWithSignature) ([]string, error) {
	result, rpcErr, err := r.post(ctx, jsonRPCRequest{
		ID:      "1",
		JSONRPC: "2.0",
		Method:  "submit_txs_batch",
		Params:  []interface{}{txs},
	})
	if err != nil {
		return nil, err
	}
	if rpcErr != nil {
		return nil, &models.SubmissionRejectedError{Code: rpcErr.Code, Reason: rpcErr.Message}
	}

	var hashes []string
	if err := json.Unmarshal(result, &hashes); err != nil {
		return nil, &models.MalformedResponseError{Endpoint: r.rpcURL, Payload: result, Err: err}
	}
	if len(hashes) != len(txs) {
		return nil, &models.MalformedResponseError{
			Endpoint: r.rpcURL,
			Payload:  result,
			Err:      fmt.Errorf("expected %d tx hashes, got %d", len(txs), len(hashes)),
		}
	}

	return hashes, nil
}

// OperationState queries the execution/finality state of a submitted
// transaction.
func (r *RpcClient) OperationState(ctx context.Context, txHash string) (*models.OperationState, error) {
	result, rpcErr, err := r.post(ctx, jsonRPCRequest{
		ID:      "1",
		JSONRPC: "2.0",
		Method:  "tx_info",
		Params:  []interface{}{txHash},
	})
	if err != nil {
		return nil, err
	}
	// A read-only query failure is not a rejected submission.
	if rpcErr != nil {
		return nil, fmt.Errorf("tx_info query failed (code %d): %s", rpcErr.Code, rpcErr.Message)
	}

	var state models.OperationState
	if err := json.Unmarshal(result, &state); err != nil {
		return nil, &models.MalformedResponseError{Endpoint: r.rpcURL, Payload: result, Err: err}
	}

	return &state, nil
}

// post performs the JSON-RPC round trip and unwraps the response
// envelope. Transport failures wrap ErrLedgerUnavailable; a populated
// error object is handed back to the caller, which knows whether the
// call was a submission or a query.
func (r *RpcClient) post(ctx context.Context, request jsonRPCRequest) (json.RawMessage, *jsonRPCError, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode %s request: %w", request.Method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build %s request: %w", request.Method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s request failed: %v", models.ErrLedgerUnavailable, request.Method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("%w: rpc endpoint returned status %d", models.ErrLedgerUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to read %s response: %v", models.ErrLedgerUnavailable, request.Method, err)
	}

	var reply jsonRPCResponse
	if err := json.Unmarshal(body, &reply); err != nil {
		r.logger.Error("Ledger returned undecodable rpc response ", "method ", request.Method, " payload ", string(body))
		return nil, nil, &models.MalformedResponseError{Endpoint: r.rpcURL, Payload: body, Err: err}
	}

	return reply.Result, reply.Error, nil
}
