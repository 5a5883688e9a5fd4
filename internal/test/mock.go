// Mock methods required in Agora tests are all here.

package test

import (
	"Agora/internal/entity"
	"Agora/pkg/middlewares"

	"github.com/gin-gonic/gin"
)

// MockRouter returns a fresh gin engine in test mode, so every test registers its own routes.
func MockRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middlewares.CORSMiddleware("*")) // CORS middleware which allows request from all origin
	return router
}

// MockSession is the viewer used across Agora tests.
var MockSession = entity.Session{Username: "alice", Token: "test-token"}
