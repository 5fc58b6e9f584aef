package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-geoview/internal/kml"
	"github.com/joeblew999/plat-geoview/internal/logging"
	"github.com/joeblew999/plat-geoview/internal/mapview"
	"github.com/joeblew999/plat-geoview/internal/server"
	"github.com/joeblew999/plat-geoview/internal/style"
)

// Options defines all CLI flags and env vars for the viewer.
// Flags: --host, --port, --log-level, --data-url, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_LOG_LEVEL, SERVICE_DATA_URL, ...
type Options struct {
	Host           string `doc:"Host to bind to" default:"0.0.0.0"`
	Port           int    `doc:"Port to listen on" short:"p" default:"8086"`
	LogLevel       string `doc:"Log level (debug, info, warn, error)" default:"info"`
	DataURL        string `doc:"Fetch the data layer GeoJSON from this URL instead of the embedded asset"`
	BaseTiles      string `doc:"XYZ tile URL template for the base layer"`
	ViewportWidth  int    `doc:"Initial viewport width in pixels" default:"1280"`
	ViewportHeight int    `doc:"Initial viewport height in pixels" default:"800"`
	DownloadTTL    string `doc:"How long export download links stay valid" default:"1m"`
	WebDir         string `doc:"Serve web/ from this directory instead of the embedded copy"`
	NoCatalog      bool   `doc:"Disable the DuckDB feature catalog"`
}

func newLogger(opts *Options) *log.Logger {
	return logging.New(os.Stderr, logging.ParseLevel(opts.LogLevel))
}

func newServer(ctx context.Context, opts *Options, logger *log.Logger) (*server.Server, error) {
	ttl, err := time.ParseDuration(opts.DownloadTTL)
	if err != nil {
		return nil, fmt.Errorf("download ttl: %w", err)
	}
	return server.New(ctx, server.Config{
		Host:        opts.Host,
		Port:        fmt.Sprintf("%d", opts.Port),
		DataURL:     opts.DataURL,
		BaseTiles:   opts.BaseTiles,
		Viewport:    mapview.Size{Width: float64(opts.ViewportWidth), Height: float64(opts.ViewportHeight)},
		DownloadTTL: ttl,
		WebDir:      opts.WebDir,
		NoCatalog:   opts.NoCatalog,
	}, logger)
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		hooks.OnStart(func() {
			logger := newLogger(opts)
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, err := newServer(ctx, opts, logger)
			if err != nil {
				logger.Fatal("startup failed", "err", err)
			}
			defer srv.Close()

			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("geoview starting...\n")
			fmt.Printf("  Viewer:  %s/\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			if err := srv.ListenAndServe(ctx); err != nil {
				logger.Fatal("server error", "err", err)
			}
			logger.Info("server stopped")
		})
	})

	cli.Root().Use = "geoview"
	cli.Root().Short = "Web map viewer for KML layers"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			opts.NoCatalog = true
			srv, err := newServer(cmd.Context(), opts, logging.New(os.Stderr, log.WarnLevel))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			defer srv.Close()

			useYAML, _ := cmd.Flags().GetBool("yaml")
			if err := printValue(srv.OpenAPI(), useYAML); err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// inspect subcommand: print the style snapshots the viewer would attach
	inspectCmd := &cobra.Command{
		Use:   "inspect <file.kml>",
		Short: "Print the style snapshots of each placemark in a KML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			zoom, _ := cmd.Flags().GetFloat64("zoom")
			useYAML, _ := cmd.Flags().GetBool("yaml")
			styles, err := inspect(args[0], mapview.ZoomResolution(zoom))
			if err != nil {
				return err
			}
			return printValue(styles, useYAML)
		},
	}
	inspectCmd.Flags().Float64P("zoom", "z", 8, "Zoom level to resolve styles at")
	inspectCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(inspectCmd)

	cli.Run()
}

func inspect(path string, resolution float64) (map[string][]style.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	placemarks, err := kml.Decode(f, kml.DecodeOptions{})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	styles := make(map[string][]style.Snapshot, len(placemarks))
	for i, pm := range placemarks {
		name, _ := pm.Feature.Properties["name"].(string)
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}
		snapshots, err := style.FeatureSnapshots(pm.Feature, pm.StyleFunction(), resolution)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		styles[name] = snapshots
	}
	return styles, nil
}

func printValue(v any, useYAML bool) error {
	var output []byte
	var err error
	if useYAML {
		// Round-trip through JSON so yaml.v3 sees the json field names.
		var plain any
		if output, err = json.Marshal(v); err == nil {
			if err = json.Unmarshal(output, &plain); err == nil {
				output, err = yaml.Marshal(plain)
			}
		}
	} else {
		output, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}
