package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/psds-microservice/helpy/paths"
	"github.com/psds-microservice/ticket-webhook/api"
	"github.com/psds-microservice/ticket-webhook/internal/handler"
	"github.com/psds-microservice/ticket-webhook/internal/logger"
	"github.com/psds-microservice/ticket-webhook/internal/metrics"
	"github.com/psds-microservice/ticket-webhook/internal/model"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// Routes per ticket channel. The two flows are served side by side and
// must stay on separate paths.
var (
	createRoutes = map[model.Channel]string{model.ChannelVoice: "/webhook", model.ChannelWhatsApp: "/create"}
	statusRoutes = map[model.Channel]string{model.ChannelVoice: "/check_status", model.ChannelWhatsApp: "/check"}
)

const relayRoute = "/twilio-dialogflowcx"

type Deps struct {
	Tickets  *handler.TicketHandler
	Relay    *handler.RelayHandler
	Health   *handler.HealthHandler
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Log      *zap.Logger
}

func New(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.Discard()
	}

	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, rec any) {
		log.Error("unhandled panic", zap.String("path", c.Request.URL.Path), zap.Any("panic", rec))
		c.AbortWithStatus(http.StatusInternalServerError)
	}))
	r.Use(observe(d.Metrics))

	r.GET("/", handler.Home)
	r.GET(paths.PathHealth, d.Health.Health)
	r.GET(paths.PathReady, d.Health.Ready)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	r.GET(paths.PathSwagger, func(c *gin.Context) { c.Redirect(http.StatusFound, paths.PathSwagger+"/") })
	r.GET(paths.PathSwagger+"/*any", func(c *gin.Context) {
		if strings.TrimPrefix(c.Param("any"), "/") == "openapi.json" {
			c.Data(http.StatusOK, "application/json", api.OpenAPISpec)
			return
		}
		if strings.TrimPrefix(c.Param("any"), "/") == "" {
			c.Request.URL.Path = paths.PathSwagger + "/index.html"
			c.Request.RequestURI = paths.PathSwagger + "/index.html"
		}
		ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL(paths.PathSwagger+"/openapi.json"))(c)
	})

	for _, ch := range model.Channels {
		r.POST(createRoutes[ch], handler.Apologize(log, handler.CreateApology), d.Tickets.Create(ch))
		r.POST(statusRoutes[ch], handler.Apologize(log, handler.StatusApology), d.Tickets.Status(ch))
	}
	r.POST(relayRoute, d.Relay.Relay)

	return r
}

// observe counts every request by matched route and final status.
func observe(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(route, c.Writer.Status())
	}
}
