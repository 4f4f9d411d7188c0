package server

import "github.com/gin-gonic/gin"

// NewGinEngine builds a gin router with all protocol endpoints registered.
func NewGinEngine(s *Server) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())

	r.GET(s.Config.AuthorizePath, s.HandleAuthorizeRequest)
	r.POST(s.Config.AuthorizePath, s.HandleAuthorizeRequest)

	r.POST(s.Config.TokenPath, s.HandleTokenRequest)
	r.POST(s.Config.DeviceAuthorizationPath, s.HandleDeviceAuthorizationRequest)

	r.POST(s.Config.IntrospectionPath, s.HandleIntrospectionRequest)
	r.POST(s.Config.RevocationPath, s.HandleRevocationRequest)

	r.GET(s.Config.DiscoveryPath, s.HandleDiscovery)
	r.GET(s.Config.JwksPath, s.HandleJwks)

	return r
}
