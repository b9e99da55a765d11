package http

import "github.com/gin-gonic/gin"

// Register attaches the auth bootstrap routes to the given router group.
// These sit outside the admin gate; each handler does its own checking.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/login", h.login)
	rg.POST("/logout", h.logout)
	rg.GET("/status", h.status)
	rg.GET("/mfa", h.mfaStatus)
	rg.POST("/mfa/verify", h.mfaVerify)
	rg.POST("/mfa/reset", h.mfaReset)
}
