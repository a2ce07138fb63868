package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chenBenjamin97/smart-room/pkg/control"
	"github.com/chenBenjamin97/smart-room/pkg/room"
	"github.com/chenBenjamin97/smart-room/pkg/zone"
)

//Room is the part of room.Session the router needs
type Room interface {
	Snapshot() room.Snapshot
	Table() *zone.Table
	ToggleMode()
	ToggleZone(id int) error
}

//FrameSource provides the last rendered frame as JPEG
type FrameSource interface {
	Snapshot() ([]byte, bool)
}

//SetRouter builds the HTTP surface. frames and registry may be nil, their routes then answer 404.
func SetRouter(rm Room, frames FrameSource, registry *prometheus.Registry) *gin.Engine {
	r := gin.Default()

	apiRoutes := r.Group("/api")

	apiRoutes.GET("/state", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, rm.Snapshot())
	})

	apiRoutes.GET("/zones", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, rm.Table().Zones())
	})

	//toggles are queued and applied on the next tick, so both answer 202. A zone toggle outside manual
	//mode would be dropped and answers 409.
	apiRoutes.POST("/mode/toggle", func(ctx *gin.Context) {
		rm.ToggleMode()
		log.Printf("api/ToggleMode: Mode toggle requested")
		ctx.Status(http.StatusAccepted)
	})

	apiRoutes.POST("/zones/:id/toggle", func(ctx *gin.Context) {
		id, err := strconv.Atoi(ctx.Param("id"))
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "zone id must be an integer"})
			return
		}

		if _, ok := rm.Table().Zone(id); !ok {
			ctx.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("zone %d does not exist", id)})
			return
		}

		if rm.Snapshot().Mode != control.Manual {
			ctx.JSON(http.StatusConflict, gin.H{"error": "zones can only be toggled in manual mode"})
			return
		}

		if err := rm.ToggleZone(id); err != nil {
			if errors.Is(err, control.ErrUnknownZone) {
				ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			log.Printf("api/ToggleZone: Error toggling zone %d, got '%v'", id, err)
			ctx.Status(http.StatusInternalServerError)
			return
		}

		log.Printf("api/ToggleZone: Toggle requested for zone %d", id)
		ctx.Status(http.StatusAccepted)
	})

	apiRoutes.GET("/snapshot", func(ctx *gin.Context) {
		if frames == nil {
			ctx.Status(http.StatusNotFound) //rendering disabled
			return
		}

		jpeg, ok := frames.Snapshot()
		if !ok {
			ctx.Status(http.StatusServiceUnavailable) //nothing rendered yet
			return
		}

		ctx.Header("Cache-Control", "no-store")
		ctx.Data(http.StatusOK, "image/jpeg", jpeg)
	})

	if registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))
	}

	return r
}
