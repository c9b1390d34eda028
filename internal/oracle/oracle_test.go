package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subvia/subscriptor/internal/models"
	"github.com/subvia/subscriptor/pkg/logger"
)

var oracleUser = models.MustParseAddress("0x1111111111111111111111111111111111111111")

func TestGrantedTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v0.1/granted_tokens", r.URL.Path)

		var request struct {
			User          models.Address `json:"user"`
			CommunityName string         `json:"communityName"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		assert.Equal(t, oracleUser, request.User)
		assert.Equal(t, "test-dao", request.CommunityName)

		fmt.Fprint(w, `{"token":"TST","amount":25}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, logger.NewNop())
	granted, err := client.GrantedTokens(context.Background(), oracleUser, "test-dao")
	require.NoError(t, err)
	assert.Equal(t, "TST", granted.Token)
	assert.Equal(t, int64(25), granted.Amount)
}

func TestGrantedTokensOracleError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "user not subscribed", http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(server.URL, logger.NewNop())
	_, err := client.GrantedTokens(context.Background(), oracleUser, "test-dao")
	assert.Error(t, err)
}

func TestMintingSignature(t *testing.T) {
	mintingTx := json.RawMessage(`{"type":"MintNFT","contentHash":"0xabc"}`)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v0.1/get_minting_signature", r.URL.Path)

		var request struct {
			MintingTx json.RawMessage `json:"mintingTx"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		assert.JSONEq(t, string(mintingTx), string(request.MintingTx))

		fmt.Fprint(w, `{"signature":"0xsigned"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, logger.NewNop())
	signature, err := client.MintingSignature(context.Background(), oracleUser, "test-dao", mintingTx)
	require.NoError(t, err)
	assert.JSONEq(t, `"0xsigned"`, string(signature))
}
