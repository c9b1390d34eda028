package http_api

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	s.router.POST("/api/v0.1/declare_community", s.declareCommunity)
	s.router.POST("/api/v0.1/is_user_subscribed", s.isUserSubscribed)
	s.router.POST("/api/v0.1/subscribe", s.subscribe)
	s.router.POST("/api/v0.1/granted_tokens", s.grantedTokens)
	s.router.POST("/api/v0.1/get_minting_signature", s.getMintingSignature)
	s.router.GET("/api/v0.1/genesis_wallet_address", s.genesisWalletAddress)
}
