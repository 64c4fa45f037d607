package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/roadrunner-sim/viewer/internal/camera"
	"github.com/roadrunner-sim/viewer/internal/config"
	"github.com/roadrunner-sim/viewer/internal/geo"
	"github.com/roadrunner-sim/viewer/internal/monitor"
	"github.com/roadrunner-sim/viewer/internal/poller"
	"github.com/roadrunner-sim/viewer/internal/store"
	"github.com/roadrunner-sim/viewer/internal/view"
)

// errRideEnded is returned by runRide when the followed entity could not be fetched.
var errRideEnded = errors.New("ride-along ended")

func isRideEnded(err error) bool {
	return errors.Is(err, errRideEnded)
}

func displaySizes(cfg config.DisplayConfig) geo.SizeRange {
	return geo.SizeRange{
		MinSize: cfg.MinSize,
		MaxSize: cfg.MaxSize,
		MinZoom: cfg.MinZoom,
		MaxZoom: cfg.MaxZoom,
	}
}

// pageSinks are the recorders the poller feeds after each merged page.
func (a *app) pageSinks() []poller.PageSink {
	sinks := []poller.PageSink{a.backend}
	if a.influx != nil {
		sinks = append(sinks, a.influx)
	}
	return sinks
}

func (a *app) statusSinks() []monitor.StatusSink {
	var sinks []monitor.StatusSink
	if s, ok := a.backend.(monitor.StatusSink); ok {
		sinks = append(sinks, s)
	}
	if a.influx != nil {
		sinks = append(sinks, a.influx)
	}
	return sinks
}

func (a *app) newMonitor(poll monitor.PollState) *monitor.Service {
	return monitor.NewService(monitor.Dependencies{
		Live:    a.live,
		Display: a.display,
		Poll:    poll,
		Session: a.session,
		Sinks:   a.statusSinks(),
		Logger:  a.logger,
	}, config.GetDuration("monitor.interval"))
}

// runOverview polls the listing and draws every live entity until ctx is done.
func (a *app) runOverview(ctx context.Context) error {
	displayCfg := config.GetDisplayConfig()
	pollCfg := config.GetPollConfig()

	policy, err := store.ParseEvictionPolicy(displayCfg.Eviction)
	if err != nil {
		return err
	}

	var overview *view.Overview
	poll, err := poller.NewService(poller.Dependencies{
		Client:      a.client,
		Live:        a.live,
		Display:     a.display,
		Sinks:       a.pageSinks(),
		Logger:      a.logger,
		DefaultSize: func() float64 { return overview.DefaultSize() },
	}, poller.Config{
		Interval:        pollCfg.Interval,
		PageSize:        pollCfg.PageSize,
		EvictionTimeout: pollCfg.EvictionTimeout,
		Eviction:        policy,
	})
	if err != nil {
		return fmt.Errorf("failed to create poller: %w", err)
	}

	overview, err = view.NewOverview(view.OverviewDependencies{
		Live:     a.live,
		Display:  a.display,
		Renderer: a.renderer,
		Routes:   a.routes,
		Poll:     poll,
		Logger:   a.logger,
	}, view.OverviewConfig{
		Sizes:         displaySizes(displayCfg),
		InitialZoom:   displayCfg.InitialZoom,
		HitDistance:   displayCfg.HitDistance,
		FrameInterval: pollCfg.Interval,
	})
	if err != nil {
		return fmt.Errorf("failed to create overview: %w", err)
	}

	d, err := a.newDispatcher()
	if err != nil {
		return err
	}
	overview.Register(ctx, d)

	a.startSession()
	defer a.endSession()

	mon := a.newMonitor(poll)
	poll.Start(ctx)
	overview.Start(ctx)
	mon.Start(ctx)
	a.logger.Info("Overview running", "eviction", policy, "pageSize", pollCfg.PageSize)

	<-ctx.Done()

	mon.Stop()
	overview.Stop()
	poll.Stop()
	active, total := overview.Counts()
	a.logger.Info("Overview stopped", "active", active, "total", total)
	return nil
}

// runRide follows one entity until ctx is done or the entity can no longer
// be fetched, in which case it returns an error wrapping errRideEnded.
func (a *app) runRide(ctx context.Context, id string) error {
	camCfg := config.GetCameraConfig()
	offCfg := config.GetOffsetConfig()
	displayCfg := config.GetDisplayConfig()

	ended := make(chan error, 1)
	offset := camera.NewOffsetController(ctx, offCfg.Step, offCfg.Interval)
	cam, err := camera.NewController(id, camera.Dependencies{
		Client:   a.client,
		Routes:   a.routes,
		Renderer: a.renderer,
		Offset:   offset,
		Logger:   a.logger,
		OnTerminate: func(err error) {
			ended <- err
		},
	}, camera.Config{
		Interval:        camCfg.Interval,
		BaseRange:       camCfg.BaseRange,
		ReferenceHeight: camCfg.ReferenceHeight,
		ViewportHeight:  camCfg.ViewportHeight,
	})
	if err != nil {
		offset.Close()
		return fmt.Errorf("failed to create camera: %w", err)
	}

	ride, err := view.NewRide(view.RideDependencies{
		Camera:   cam,
		Offset:   offset,
		Renderer: a.renderer,
		Logger:   a.logger,
	}, displayCfg.MaxSize, camCfg.Interval)
	if err != nil {
		offset.Close()
		return fmt.Errorf("failed to create ride-along view: %w", err)
	}

	d, err := a.newDispatcher()
	if err != nil {
		offset.Close()
		return err
	}
	ride.Register(d)

	a.startSession()
	defer a.endSession()

	mon := a.newMonitor(nil)
	ride.Start(ctx)
	mon.Start(ctx)
	a.logger.Info("Ride-along running", "entity", id)
	defer func() {
		mon.Stop()
		ride.Stop()
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-ended:
		a.logger.Warn("Ride-along ended", "entity", id, "error", err)
		return fmt.Errorf("%w: %w", errRideEnded, err)
	}
}
