package controllers

import (
	"context"
	"net/http"
	"time"

	restful "github.com/emicklei/go-restful/v3"
	"go.uber.org/zap"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthController answers the Consul HTTP check.
type HealthController struct {
	db     Pinger
	logger *zap.Logger
}

func NewHealthController(db Pinger, logger *zap.Logger) *HealthController {
	return &HealthController{db: db, logger: logger.Named("health")}
}

func (ctl *HealthController) RegisterRoutes(ws *restful.WebService) {
	ws.Path("/health").Produces(restful.MIME_JSON)
	ws.Route(ws.GET("").To(ctl.healthHandler).
		Doc("Liveness and database reachability").
		Returns(http.StatusOK, "Healthy", nil).
		Returns(http.StatusServiceUnavailable, "Database unreachable", ErrorResponse{}))
}

func (ctl *HealthController) healthHandler(request *restful.Request, response *restful.Response) {
	ctx, cancel := context.WithTimeout(request.Request.Context(), 2*time.Second)
	defer cancel()
	if err := ctl.db.PingContext(ctx); err != nil {
		ctl.logger.Warn("Database ping failed", zap.Error(err))
		writeError(response, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, map[string]string{"status": "ok"}, restful.MIME_JSON)
}
