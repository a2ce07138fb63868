package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/chenBenjamin97/smart-room/pkg/actuator"
	"github.com/chenBenjamin97/smart-room/pkg/api"
	"github.com/chenBenjamin97/smart-room/pkg/config"
	"github.com/chenBenjamin97/smart-room/pkg/detection"
	"github.com/chenBenjamin97/smart-room/pkg/metrics"
	"github.com/chenBenjamin97/smart-room/pkg/room"
	"github.com/chenBenjamin97/smart-room/pkg/video"
)

const shutdownTimeout = 5 * time.Second

func rootCommand() *cobra.Command {
	v := viper.New()
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "smartroom",
		Short:        "Occupancy driven lighting control for one room",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(v, configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), settings)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the config file (default ./config.yaml)")
	rootCmd.PersistentFlags().String("port", "", "HTTP port, overrides http.port")
	rootCmd.PersistentFlags().String("transport", "", "Actuator transport: "+fmt.Sprint(actuator.Transports))

	if err := v.BindPFlag("http.port", rootCmd.PersistentFlags().Lookup("port")); err != nil {
		log.Fatalf("Error: Could not bind flag 'port', got '%v'", err)
	}
	if err := v.BindPFlag("actuator.transport", rootCmd.PersistentFlags().Lookup("transport")); err != nil {
		log.Fatalf("Error: Could not bind flag 'transport', got '%v'", err)
	}

	rootCmd.AddCommand(zonesCommand(v, &configPath))

	return rootCmd
}

func zonesCommand(v *viper.Viper, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "zones",
		Short: "Print the resolved zone table and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(v, *configPath)
			if err != nil {
				return err
			}

			table, err := settings.ZoneTable()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-5s %-12s %s\n", "ZONE", "POINT", "ACTUATOR")
			for _, z := range table.Zones() {
				fmt.Fprintf(out, "%-5d %-12s %s\n", z.ID+1, z.Point.String(), z.ActuatorID)
			}
			return nil
		},
	}
}

//run wires capture, detection, control, actuation and the HTTP server and blocks until ctx is cancelled
func run(ctx context.Context, s *config.Settings) error {
	table, err := s.ZoneTable()
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	m, err := metrics.NewMetrics(registry)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	transport, err := actuator.New(s.ActuatorOptions())
	if err != nil {
		return err
	}
	defer func() {
		if err := transport.Close(); err != nil {
			log.Printf("Error: Could not close actuator transport, got '%v'", err)
		}
	}()
	dispatcher := actuator.NewDispatcher(transport, s.Actuator.QueueSize, s.Actuator.Timeout, m)

	camera, err := video.OpenCamera(s.Camera.Device)
	if err != nil {
		return err
	}
	width, height := camera.Size()
	log.Printf("Camera: Opened '%s' at %dx%d", s.Camera.Device, width, height)

	detector, err := video.NewDarknet(video.DarknetConfig{
		ConfigPath:    s.Detector.Config,
		WeightsPath:   s.Detector.Weights,
		InputSize:     s.Detector.InputSize,
		Backend:       s.Detector.Backend,
		Target:        s.Detector.Target,
		MinConfidence: s.Detector.MinConfidence,
	})
	if err != nil {
		camera.Close()
		return err
	}
	defer detector.Close()

	filter := detection.NewFilter(s.Detection.ConfidenceThreshold, s.Detection.NMSThreshold)
	filter.PersonClass = s.Detection.PersonClass

	session := room.NewSession(room.Config{
		Table:      table,
		Filter:     filter,
		UnitSaving: s.Stats.UnitSaving,
		Sink:       dispatcher,
		Metrics:    m,
	})
	log.Printf("Session %s: %d zones, actuator transport '%s'", session.ID, table.Len(), s.Actuator.Transport)

	var frames api.FrameSource
	if s.Render.Enabled {
		overlay := video.NewOverlay(table, s.Render.Interval)
		session.AddObserver(overlay)
		frames = overlay
	}

	loop := room.NewLoop(session, camera, detector, room.LoopOptions{
		Period:       s.Loop.Period,
		Async:        s.Detection.Async,
		MaxResultAge: s.Loop.MaxResultAge,
		Metrics:      m,
	})

	server := &http.Server{
		Addr:    ":" + s.HTTP.Port,
		Handler: api.SetRouter(session, frames, registry),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	g.Go(func() error {
		return dispatcher.Run(gctx)
	})
	g.Go(func() error {
		log.Printf("HTTP: Listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Printf("Session %s: Stopped", session.ID)
	return err
}
