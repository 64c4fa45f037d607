// Command roadrunner-viewer shows live telemetry entities on a map, follows a
// single entity with a chase camera, and drives the telemetry source's
// management endpoints.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/roadrunner-sim/viewer/internal/api"
	"github.com/roadrunner-sim/viewer/internal/session"
	"github.com/roadrunner-sim/viewer/pkg/core"
)

// Version and BuildDate can be set at build time via ldflags.
var (
	Version   = "0.0.1"
	BuildDate = "unknown"
)

const appName = "roadrunner_viewer"

// Swapped in tests.
var stdout io.Writer = os.Stdout

// Globals are flags shared by every command.
type Globals struct {
	ConfigDir string           `help:"Directory holding roadrunner_viewer.cfg.json." default:"." type:"path"`
	Version   kong.VersionFlag `help:"Print version and exit."`
}

// CLI is the command tree.
type CLI struct {
	Globals

	Overview   OverviewCmd   `cmd:"" default:"1" help:"Show every live entity (default)."`
	Ride       RideCmd       `cmd:"" help:"Follow one entity with the chase camera."`
	CrissCross CrissCrossCmd `cmd:"" name:"crisscross" help:"Spawn entities driving across a circle."`
	Create     CreateCmd     `cmd:"" help:"Spawn one entity driving between two addresses."`
	Reset      ResetCmd      `cmd:"" help:"Drop every entity on the telemetry source."`
}

// OverviewCmd runs the overview until interrupted.
type OverviewCmd struct{}

func (c *OverviewCmd) Run(ctx context.Context, g *Globals) error {
	sess := session.New(session.Overview, "")
	a, err := newApp(g, sess)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.openViewer(ctx); err != nil {
		return err
	}
	return a.runOverview(ctx)
}

// RideCmd follows one entity. When the entity can no longer be fetched the
// viewer falls back to the overview unless NoFallback is set.
type RideCmd struct {
	ID         string `arg:"" help:"Entity to follow."`
	NoFallback bool   `help:"Exit instead of returning to the overview when the ride ends."`
}

func (c *RideCmd) Run(ctx context.Context, g *Globals) error {
	sess := session.New(session.RideAlong, c.ID)
	a, err := newApp(g, sess)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.openViewer(ctx); err != nil {
		return err
	}
	err = a.runRide(ctx, c.ID)
	if !isRideEnded(err) || c.NoFallback {
		return err
	}
	a.logger.Info("Returning to overview", "entity", c.ID)
	sess.Switch(session.Overview, "")
	return a.runOverview(ctx)
}

// CrissCrossCmd posts a create-crisscross request. Negative coordinates must
// use the --flag=value form; "--lon -74.25" reads -74.25 as a short flag.
type CrissCrossCmd struct {
	Lat      float64 `help:"Center latitude. Use --lat=-33.9 for negative values." default:"32.74666"`
	Lon      float64 `help:"Center longitude. Use --lon=-74.25 for negative values." default:"-97.319507"`
	KmRadius float64 `name:"km-radius" help:"Circle radius in kilometers." default:"10"`
	Count    int     `help:"Number of entities to spawn." default:"15"`
}

func (c *CrissCrossCmd) request() api.CrissCrossRequest {
	return api.CrissCrossRequest{
		DegLatitude:  c.Lat,
		DegLongitude: c.Lon,
		KmRadius:     c.KmRadius,
		VehicleCount: c.Count,
	}
}

func (c *CrissCrossCmd) Run(ctx context.Context, g *Globals) error {
	a, err := newApp(g, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	req := c.request()
	if err := a.client.CreateCrissCross(ctx, req); err != nil {
		return err
	}
	a.logger.Info("Requested crisscross", "lat", req.DegLatitude, "lon", req.DegLongitude,
		"kmRadius", req.KmRadius, "count", req.VehicleCount)
	fmt.Fprintf(stdout, "requested %d entities around %.5f, %.5f\n", req.VehicleCount, req.DegLatitude, req.DegLongitude)
	return nil
}

// AddressFlags is one stop of a create request.
type AddressFlags struct {
	Address1 string `name:"address1" help:"Street address." required:""`
	Address2 string `name:"address2" help:"Unit or suite."`
	City     string `help:"City." required:""`
	State    string `help:"State." required:""`
	Zip      int    `help:"ZIP code." required:""`
}

func (f AddressFlags) address() core.Address {
	return core.Address{
		Address1: f.Address1,
		Address2: f.Address2,
		City:     f.City,
		State:    f.State,
		ZipCode:  f.Zip,
	}
}

// CreateCmd posts a create-new request.
type CreateCmd struct {
	From AddressFlags `embed:"" prefix:"from-"`
	To   AddressFlags `embed:"" prefix:"to-"`
}

func (c *CreateCmd) Run(ctx context.Context, g *Globals) error {
	a, err := newApp(g, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := a.client.CreateEntity(ctx, c.From.address(), c.To.address())
	if err != nil {
		return err
	}
	a.logger.Info("Created entity", "entity", id)
	fmt.Fprintln(stdout, id)
	return nil
}

// ResetCmd asks the telemetry source to drop every entity.
type ResetCmd struct{}

func (c *ResetCmd) Run(ctx context.Context, g *Globals) error {
	a, err := newApp(g, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.client.ResetServer(ctx); err != nil {
		return err
	}
	a.logger.Info("Server reset")
	fmt.Fprintln(stdout, "server reset")
	return nil
}

func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name("roadrunner-viewer"),
		kong.Description("Live map viewer for simulated telemetry entities."),
		kong.UsageOnError(),
		kong.Vars{"version": fmt.Sprintf("%s (%s)", Version, BuildDate)},
	}, options...)
	return kong.New(cli, options...)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cli CLI
	parser, err := newParser(&cli, kong.BindTo(ctx, (*context.Context)(nil)))
	if err != nil {
		panic(err)
	}
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	err = kctx.Run(&cli.Globals)
	stop()
	kctx.FatalIfErrorf(err)
}
