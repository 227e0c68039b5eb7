package handlers

import (
	"bitbucket.org/mmdatafocus/integrity_backend/graph"
	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/transport"
	"github.com/gin-gonic/gin"
	"github.com/ravilushqa/otelgqlgen"
)

// GraphQL serves the moderator query API. Mount it behind LoaderMiddleware.
func (h *Handler) GraphQL() gin.HandlerFunc {
	c := graph.Config{Resolvers: &graph.Resolver{
		Tracer:  h.Tracer,
		Reports: h.Reports,
		Ledger:  h.Ledger,
	}}
	srv := handler.New(graph.NewExecutableSchema(c))
	srv.AddTransport(transport.POST{})
	srv.Use(otelgqlgen.Middleware())

	return func(c *gin.Context) {
		srv.ServeHTTP(c.Writer, c.Request)
	}
}
