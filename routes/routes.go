// Package routes assembles the gin router for the Voya agent API.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/voyahq/voya-agent/controllers"
	"github.com/voyahq/voya-agent/middlewares"
)

func Setup(chat *controllers.ChatController, conversations *controllers.ConversationController, tours *controllers.TourController) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middlewares.RequestLogger(), middlewares.CORS())

	api := r.Group("/api")

	api.POST("/chat/", chat.Chat)
	api.GET("/health/", controllers.Health)

	c := api.Group("/conversations")
	c.POST("/new/", conversations.Create)
	c.GET("/", conversations.List)
	c.GET("/search/", conversations.Search)
	c.GET("/:id/", conversations.Detail)
	c.PUT("/:id/update/", conversations.Update)
	c.DELETE("/:id/delete/", conversations.Delete)

	api.POST("/tours/search/", tours.Search)

	return r
}
