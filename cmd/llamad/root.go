package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"llamad/internal/common/fsutil"
	"llamad/internal/config"
	"llamad/internal/device"
	"llamad/internal/httpapi"
	"llamad/internal/registry"
	"llamad/internal/supervisor"
)

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "llamad",
		Short:         "GPU inventory and llama-server supervision daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("addr", envDefault("LLAMAD_ADDR", ":8090"), "daemon HTTP address")
	root.PersistentFlags().String("log-level", envDefault("LLAMAD_LOG_LEVEL", "info"), "log level: debug|info|warn|error")
	root.AddCommand(newServeCmd(), newDevicesCmd(), newEnsureCmd(), newTerminateCmd(), newStatusCmd())
	return root
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			return runServe(cfg, newLogger(cmd.Flag("log-level").Value.String()))
		},
	}
	f := cmd.Flags()
	f.String("config", "", "config file (.yaml, .json or .toml)")
	f.String("models-dir", "~/models/llm", "directory to scan for *.gguf model files")
	f.String("default-model", "", "model id used when a request omits one")
	f.String("server-bin", "", "llama-server binary to spawn")
	f.String("server-dir", "", "working directory for the spawned server")
	f.String("host", "", "host the spawned server binds")
	f.String("port", "", "port the spawned server binds (default 8080)")
	f.Int("ctx-size", 0, "context size passed to the spawned server")
	f.Bool("no-gpu", false, "hide all accelerators from the spawned server")
	f.IntSlice("gpu-devices", nil, "accelerator ordinals to use (empty discovers all)")
	f.Int("main-gpu", -1, "primary accelerator ordinal (-1 selects automatically)")
	f.Bool("strict-gpu", false, "fail instead of skipping unavailable accelerators")
	f.Bool("cors", false, "enable CORS")
	f.String("cors-origins", "", "comma-separated allowed CORS origins")
	return cmd
}

// resolveConfig loads the optional config file and lets changed flags win.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	f := cmd.Flags()
	if path, _ := f.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if fl := cmd.Flag("addr"); fl != nil && (cfg.Addr == "" || fl.Changed) {
		cfg.Addr = fl.Value.String()
	}
	if v, _ := f.GetString("models-dir"); cfg.ModelsDir == "" || f.Changed("models-dir") {
		cfg.ModelsDir = v
	}
	if v, _ := f.GetString("default-model"); f.Changed("default-model") || cfg.DefaultModel == "" {
		cfg.DefaultModel = v
	}
	if v, _ := f.GetString("server-bin"); f.Changed("server-bin") || cfg.ServerBin == "" {
		cfg.ServerBin = v
	}
	if v, _ := f.GetString("server-dir"); f.Changed("server-dir") || cfg.ServerDir == "" {
		cfg.ServerDir = v
	}
	if v, _ := f.GetString("host"); f.Changed("host") || cfg.Host == "" {
		cfg.Host = v
	}
	if v, _ := f.GetString("port"); f.Changed("port") || cfg.Port == "" {
		cfg.Port = v
	}
	if v, _ := f.GetInt("ctx-size"); f.Changed("ctx-size") || cfg.CtxSize == 0 {
		cfg.CtxSize = v
	}
	if f.Changed("no-gpu") {
		cfg.NoGPU, _ = f.GetBool("no-gpu")
	}
	if f.Changed("gpu-devices") {
		cfg.GPUDevices, _ = f.GetIntSlice("gpu-devices")
	}
	if f.Changed("main-gpu") {
		if v, _ := f.GetInt("main-gpu"); v >= 0 {
			cfg.MainGPU = &v
		} else {
			cfg.MainGPU = nil
		}
	}
	if f.Changed("strict-gpu") {
		cfg.StrictGPU, _ = f.GetBool("strict-gpu")
	}
	if f.Changed("cors") {
		cfg.CORSEnabled, _ = f.GetBool("cors")
	}
	if v, _ := f.GetString("cors-origins"); f.Changed("cors-origins") {
		cfg.CORSOrigins = splitCSV(v)
	}
	return cfg, nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	var out = zerolog.New(os.Stderr)
	if isatty.IsTerminal(os.Stderr.Fd()) {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return out.Level(lvl).With().Timestamp().Logger()
}

func runServe(cfg config.Config, log zerolog.Logger) error {
	models, err := registry.LoadDir(cfg.ModelsDir)
	if err != nil {
		return err
	}
	log.Info().Int("count", len(models)).Str("dir", cfg.ModelsDir).Msg("models discovered")

	var inv *device.Inventory
	if !cfg.NoGPU {
		primary := -1
		if cfg.MainGPU != nil {
			primary = *cfg.MainGPU
		}
		inv, err = device.Discover(device.Options{
			Ordinals: cfg.GPUDevices,
			Primary:  primary,
			Strict:   cfg.StrictGPU,
			Logger:   log,
		})
		if err != nil {
			if cfg.StrictGPU {
				return err
			}
			log.Warn().Err(err).Msg("accelerator discovery failed, continuing CPU-only")
			inv = nil
		}
	}

	binPath := cfg.ServerBin
	if binPath == "" {
		binPath = "./llama-server"
	}
	probePath := binPath
	if cfg.ServerDir != "" && !filepath.IsAbs(binPath) {
		probePath = filepath.Join(cfg.ServerDir, binPath)
	}
	if !fsutil.IsExecutable(probePath) {
		log.Warn().Str("path", probePath).Msg("server binary missing or not executable, spawns will fail")
	}

	sup := supervisor.New(supervisor.Config{
		BinPath:        binPath,
		WorkDir:        cfg.ServerDir,
		Host:           cfg.Host,
		Port:           cfg.Port,
		CtxSize:        cfg.CtxSize,
		UseGPU:         !cfg.NoGPU && inv != nil,
		DeviceOrdinals: cfg.GPUDevices,
	}, inv, models, cfg.DefaultModel, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpapi.SetLogger(log)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins,
		[]string{"GET", "POST", "OPTIONS"}, []string{"Content-Type", "Accept"})
	httpapi.SetBaseContext(ctx)

	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(sup)}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("llamad listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown")
	}
	if err := sup.Close(); err != nil {
		log.Warn().Err(err).Msg("terminating managed server")
	}
	return nil
}
