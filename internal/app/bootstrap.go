// Package app is the composition root: it wires config, stores, worker
// pools, the event channel, and the HTTP surface into one application.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/yajasvikhanna/Flytbase/internal/api/handlers"
	"github.com/yajasvikhanna/Flytbase/internal/channel"
	"github.com/yajasvikhanna/Flytbase/internal/config"
	"github.com/yajasvikhanna/Flytbase/internal/domain"
	"github.com/yajasvikhanna/Flytbase/internal/gateway"
	"github.com/yajasvikhanna/Flytbase/internal/pkg/errors"
	"github.com/yajasvikhanna/Flytbase/internal/pkg/worker"
	"github.com/yajasvikhanna/Flytbase/internal/service"
	"github.com/yajasvikhanna/Flytbase/internal/store"
	"github.com/yajasvikhanna/Flytbase/internal/store/memory"
	"github.com/yajasvikhanna/Flytbase/internal/store/postgres"
	"github.com/yajasvikhanna/Flytbase/internal/usecase"
)

// Application holds composed application dependencies.
type Application struct {
	Config      *config.Config
	Router      *gin.Engine
	Pools       *worker.Pools
	Hub         *channel.Hub
	Coordinator *usecase.Coordinator

	closeStore func()
}

// Bootstrap initializes all dependencies using manual DI.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		GeneralPoolSize:  cfg.Worker.GeneralPoolSize,
		DeliveryPoolSize: cfg.Worker.DeliveryPoolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("init worker pools: %w", err)
	}

	stores, closeStore, err := newStores(ctx, cfg.Store)
	if err != nil {
		pools.Shutdown()
		return nil, err
	}

	hub := channel.NewHub(cfg.Channel, topicAuthorizer(stores))
	reports := service.NewReportGenerator(stores.Reports)
	coord := usecase.NewCoordinator(stores, reports, hub, cfg.Coordinator.MaxRetries)
	gw := gateway.New(coord)
	ws := channel.NewWSServer(hub, coord.Snapshot, pools, cfg.Channel)
	server := handlers.NewServer(coord, gw, ws, pools)

	return &Application{
		Config:      cfg,
		Router:      newRouter(cfg, server),
		Pools:       pools,
		Hub:         hub,
		Coordinator: coord,
		closeStore:  closeStore,
	}, nil
}

// newStores selects the store driver.
func newStores(ctx context.Context, cfg config.StoreConfig) (store.Stores, func(), error) {
	switch cfg.Driver {
	case "postgres":
		pg, err := postgres.New(ctx, cfg)
		if err != nil {
			return store.Stores{}, nil, fmt.Errorf("init postgres store: %w", err)
		}
		return pg.Stores(), pg.Close, nil
	case "", "memory":
		return memory.New().Stores(), func() {}, nil
	}
	return store.Stores{}, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// topicAuthorizer enforces organization scoping for mission and site topics.
// Refusals never reveal whether the target exists.
func topicAuthorizer(stores store.Stores) channel.AuthorizeFunc {
	return func(ctx context.Context, organizationID string, topic domain.Topic) error {
		kind, id, err := topic.Parse()
		if err != nil {
			return errors.BadRequest(errors.CodeTopicInvalid, "malformed topic")
		}
		forbidden := errors.Forbidden(errors.CodeTopicForbidden, "topic belongs to another organization").
			WithParams(map[string]interface{}{"topic": string(topic)})

		switch kind {
		case domain.TopicOrg:
			// Checked against the token organization by the hub itself.
			return nil

		case domain.TopicMission:
			m, err := stores.Missions.GetMission(ctx, id)
			if err != nil || m.OrganizationID != organizationID {
				return forbidden
			}
			return nil

		case domain.TopicSite:
			// A site is observable by an organization that operates at it.
			drones, err := stores.Drones.ListDrones(ctx, organizationID)
			if err != nil {
				return forbidden
			}
			for _, d := range drones {
				if d.Site == id {
					return nil
				}
			}
			return forbidden
		}
		return forbidden
	}
}

// Shutdown gracefully shuts down all application components.
func (a *Application) Shutdown() {
	if a.Hub != nil {
		a.Hub.Shutdown()
	}
	if a.Pools != nil {
		a.Pools.Shutdown()
	}
	if a.closeStore != nil {
		a.closeStore()
	}
}
