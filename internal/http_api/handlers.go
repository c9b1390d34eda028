package http_api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/subvia/subscriptor/internal/models"
	"github.com/subvia/subscriptor/pkg/validation"
)

// ErrorResponse is the uniform error body for all endpoints
type ErrorResponse struct {
	ErrorDescription string `json:"errorDescription"`
}

// DeclareCommunityRequest represents the JSON body for community declaration
type DeclareCommunityRequest struct {
	Name         string `json:"name" binding:"required"`
	TokenName    string `json:"tokenName" binding:"required"`
	TokenAddress string `json:"tokenAddress" binding:"required"`
}

// SubscriptionCheckRequest represents the JSON body for a status query
type SubscriptionCheckRequest struct {
	User          string `json:"user" binding:"required"`
	CommunityName string `json:"communityName" binding:"required"`
}

// SubscribeRequest represents the JSON body for submitting pre-signed ticks
type SubscribeRequest struct {
	User               string                    `json:"user" binding:"required"`
	CommunityName      string                    `json:"communityName" binding:"required"`
	SubscriptionWallet string                    `json:"subscriptionWallet" binding:"required"`
	Txs                []models.SubscriptionTick `json:"txs" binding:"required,min=1"`
	Telegram           string                    `json:"telegram"`
	Email              string                    `json:"email" binding:"omitempty,email"`
}

// MintingSignatureRequest represents the JSON body for a minting signature query
type MintingSignatureRequest struct {
	User          string          `json:"user" binding:"required"`
	CommunityName string          `json:"communityName" binding:"required"`
	MintingTx     json.RawMessage `json:"mintingTx" binding:"required"`
}

// GenesisAddressResponse carries the treasury address
type GenesisAddressResponse struct {
	Address string `json:"address"`
}

// declareCommunity is a handler for the /declare_community endpoint.
func (s *HTTPServer) declareCommunity(c *gin.Context) {
	var req DeclareCommunityRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("Invalid request body ", "error ", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{ErrorDescription: "Invalid request body: " + err.Error()})
		return
	}

	tokenAddress, err := parseAddressParam(req.TokenAddress)
	if err != nil {
		s.logger.Debug("Invalid token address ", "error ", err, " address ", req.TokenAddress)
		c.JSON(http.StatusBadRequest, ErrorResponse{ErrorDescription: "Invalid token address: " + err.Error()})
		return
	}

	community := &models.Community{
		Name:         req.Name,
		TokenName:    req.TokenName,
		TokenAddress: tokenAddress,
	}
	if err := s.subscriptor.DeclareCommunity(community); err != nil {
		s.logger.Error("Failed to declare community ", "error ", err, " community ", req.Name)
		c.JSON(http.StatusInternalServerError, ErrorResponse{ErrorDescription: "Failed to declare community"})
		return
	}

	s.logger.Info("Community declared ", "community ", req.Name)
	c.JSON(http.StatusCreated, gin.H{"success": true})
}

// isUserSubscribed is a handler for the /is_user_subscribed endpoint.
// It reports the user's current subscription status for a community,
// renewing on the fly from the pre-signed schedule when possible.
func (s *HTTPServer) isUserSubscribed(c *gin.Context) {
	var req SubscriptionCheckRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("Invalid request body ", "error ", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{ErrorDescription: "Invalid request body: " + err.Error()})
		return
	}

	user, err := parseAddressParam(req.User)
	if err != nil {
		s.logger.Debug("Invalid user address ", "error ", err, " address ", req.User)
		c.JSON(http.StatusBadRequest, ErrorResponse{ErrorDescription: "Invalid user address: " + err.Error()})
		return
	}

	status, err := s.subscriptor.CheckSubscription(c.Request.Context(), user, req.CommunityName)
	if err != nil {
		s.renderSubscriptionError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// subscribe is a handler for the /subscribe endpoint. The whole tick
// batch is rejected on the first structural violation.
func (s *HTTPServer) subscribe(c *gin.Context) {
	var req SubscribeRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("Invalid request body ", "error ", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{ErrorDescription: "Invalid request body: " + err.Error()})
		return
	}

	user, err := parseAddressParam(req.User)
	if err != nil {
		s.logger.Debug("Invalid user address ", "error ", err, " address ", req.User)
		c.JSON(http.StatusBadRequest, ErrorResponse{ErrorDescription: "Invalid user address: " + err.Error()})
		return
	}

	wallet, err := parseAddressParam(req.SubscriptionWallet)
	if err != nil {
		s.logger.Debug("Invalid subscription wallet ", "error ", err, " address ", req.SubscriptionWallet)
		c.JSON(http.StatusBadRequest, ErrorResponse{ErrorDescription: "Invalid subscription wallet: " + err.Error()})
		return
	}

	subscription := &models.Subscription{
		User:               user,
		CommunityName:      req.CommunityName,
		SubscriptionWallet: wallet,
		PreSignedTicks:     req.Txs,
		Telegram:           req.Telegram,
		Email:              req.Email,
	}

	if err := s.subscriptor.Subscribe(c.Request.Context(), subscription); err != nil {
		var validationErr *models.ValidationError
		if errors.As(err, &validationErr) {
			s.logger.Debug("Tick validation failed ", "error ", validationErr, " user ", req.User)
			c.JSON(http.StatusBadRequest, ErrorResponse{ErrorDescription: validationErr.Error()})
			return
		}
		if errors.Is(err, models.ErrUnknownCommunity) {
			c.JSON(http.StatusNotFound, ErrorResponse{ErrorDescription: "Unknown community: " + req.CommunityName})
			return
		}
		s.logger.Error("Failed to store subscription ", "error ", err, " user ", req.User)
		c.JSON(http.StatusInternalServerError, ErrorResponse{ErrorDescription: "Failed to store subscription"})
		return
	}

	s.logger.Info("Subscription ticks accepted ", "user ", req.User, " community ", req.CommunityName, " ticks ", len(req.Txs))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// grantedTokens proxies the token grant query to the Community Oracle.
func (s *HTTPServer) grantedTokens(c *gin.Context) {
	var req SubscriptionCheckRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("Invalid request body ", "error ", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{ErrorDescription: "Invalid request body: " + err.Error()})
		return
	}

	user, err := parseAddressParam(req.User)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{ErrorDescription: "Invalid user address: " + err.Error()})
		return
	}

	granted, err := s.oracle.GrantedTokens(c.Request.Context(), user, req.CommunityName)
	if err != nil {
		s.logger.Error("Granted tokens query failed ", "error ", err, " user ", req.User)
		c.JSON(http.StatusBadGateway, ErrorResponse{ErrorDescription: "Community oracle unavailable"})
		return
	}

	c.JSON(http.StatusOK, granted)
}

// getMintingSignature proxies a minting transaction to the Community
// Oracle for countersigning.
func (s *HTTPServer) getMintingSignature(c *gin.Context) {
	var req MintingSignatureRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("Invalid request body ", "error ", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{ErrorDescription: "Invalid request body: " + err.Error()})
		return
	}

	user, err := parseAddressParam(req.User)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{ErrorDescription: "Invalid user address: " + err.Error()})
		return
	}

	signature, err := s.oracle.MintingSignature(c.Request.Context(), user, req.CommunityName, req.MintingTx)
	if err != nil {
		s.logger.Error("Minting signature query failed ", "error ", err, " user ", req.User)
		c.JSON(http.StatusBadGateway, ErrorResponse{ErrorDescription: "Community oracle unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"signature": signature})
}

// genesisWalletAddress is a handler for the /genesis_wallet_address endpoint.
func (s *HTTPServer) genesisWalletAddress(c *gin.Context) {
	c.JSON(http.StatusOK, GenesisAddressResponse{Address: s.subscriptor.GenesisWalletAddress().Hex()})
}

// renderSubscriptionError maps the error taxonomy onto HTTP statuses.
// Ledger unavailability is transient and must not read as "not
// subscribed", so it surfaces as 502 rather than a status payload.
func (s *HTTPServer) renderSubscriptionError(c *gin.Context, err error) {
	var malformed *models.MalformedResponseError
	var rejected *models.SubmissionRejectedError

	switch {
	case errors.Is(err, models.ErrUnknownCommunity):
		c.JSON(http.StatusNotFound, ErrorResponse{ErrorDescription: err.Error()})
	case errors.Is(err, models.ErrLedgerUnavailable):
		s.logger.Warn("Ledger unavailable ", "error ", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{ErrorDescription: "Ledger temporarily unavailable, retry later"})
	case errors.As(err, &malformed):
		s.logger.Error("Malformed ledger response ", "error ", err, " payload ", string(malformed.Payload))
		c.JSON(http.StatusInternalServerError, ErrorResponse{ErrorDescription: "Ledger returned malformed data"})
	case errors.As(err, &rejected):
		s.logger.Error("Renewal submission rejected ", "error ", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{ErrorDescription: err.Error()})
	default:
		s.logger.Error("Subscription check failed ", "error ", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{ErrorDescription: "Failed to check subscription"})
	}
}

func parseAddressParam(raw string) (models.Address, error) {
	if err := validation.ValidateAddress(raw); err != nil {
		return models.Address{}, err
	}
	return models.ParseAddress(raw)
}
