// =============================================================================
// FLAPPY CLIENT
// =============================================================================
// Headless game client process:
// - Connects to the game server over websocket and keeps the world store current
// - Runs the frame loop: interpolation, local bullets, camera, effects, audio
// - Mixes positional audio into a PCM sink when one is configured
// - Serves /metrics and /debug on localhost
//
// USAGE:
//   GAME_SERVER_URL=ws://localhost:8080/ws go run ./cmd/client
// =============================================================================
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"flappy-client/internal/audio"
	"flappy-client/internal/client"
	"flappy-client/internal/config"
	"flappy-client/internal/logging"
	"flappy-client/internal/metrics"
	"flappy-client/internal/netclient"
	"flappy-client/internal/render"
)

func main() {
	// Load environment
	if err := godotenv.Load("../.env"); err != nil {
		_ = godotenv.Load(".env")
	}

	cfg, err := config.Load()
	log := logging.Setup(cfg.Log)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Invalid configuration")
	}

	log.Info().
		Str("server", cfg.Network.ServerURL).
		Str("profile", string(cfg.View.Profile)).
		Int("width", cfg.View.Width).
		Int("height", cfg.View.Height).
		Int("fps", cfg.View.FPS).
		Msg("🐦 Flappy client starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, closeAudio := setupAudio(cfg.Audio, log)
	defer closeAudio()

	var surface render.Surface
	if cfg.Debug.SnapshotDir != "" {
		if err := os.MkdirAll(cfg.Debug.SnapshotDir, 0o755); err != nil {
			log.Fatal().Err(err).Str("dir", cfg.Debug.SnapshotDir).Msg("❌ Snapshot dir")
		}
		surface = render.NewGGSurface(cfg.View.Width, cfg.View.Height)
	} else {
		surface = render.NewCountingSurface(float64(cfg.View.Width), float64(cfg.View.Height))
	}

	// The engine and the network client point at each other; nc is set
	// before the loop can send anything.
	var nc *netclient.Client
	engine := client.New(client.Options{
		Config:  cfg,
		Backend: backend,
		Surface: surface,
		Intents: client.IntentsFunc(func(in netclient.Input) error {
			return nc.SendInput(in)
		}),
		Logger: logging.Component(log, "engine"),
	})

	netOpts := netclient.OptionsFromConfig(cfg.Network, cfg.View.Profile)
	netOpts.Store = engine.Store()
	netOpts.Handler = engine
	netOpts.Logger = logging.Component(log, "net")
	nc = netclient.New(netOpts)

	if err := engine.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to start engine")
	}
	// Headless: no user gesture will ever arrive.
	engine.Unlock()

	var debugSrv *metrics.Server
	if cfg.Debug.Enabled {
		router := metrics.NewDebugRouter(metrics.RouterConfig{
			State: func() any {
				return map[string]any{
					"engine": engine.Stats(),
					"net":    nc.Stats(),
				}
			},
			Snapshot:    engine.RequestSnapshot,
			CORSOrigins: cfg.Debug.CORSOrigins,
		})
		debugSrv, err = metrics.StartDebugServer(cfg.Debug.Addr, router, false, logging.Component(log, "debug"))
		if err != nil {
			log.Error().Err(err).Str("addr", cfg.Debug.Addr).Msg("❌ Debug server not started")
		}
	}

	netDone := make(chan error, 1)
	go func() { netDone <- nc.Run(ctx) }()

	// Stats logging goroutine
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st := engine.Stats()
				ns := nc.Stats()
				log.Info().
					Uint64("frame", st.Frame).
					Int("entities", st.Entities).
					Int("bullets", st.Bullets.Active).
					Uint64("sounds", st.Audio.Played).
					Bool("connected", ns.Connected).
					Uint64("snapshots", ns.Snapshots).
					Uint64("reconnects", ns.Reconnects).
					Msg("📈 Client stats")
			}
		}
	}()

	log.Info().Msg("✅ Client ready! Press Ctrl+C to stop.")
	<-ctx.Done()

	log.Info().Msg("Shutting down client...")
	nc.Close()
	if err := <-netDone; err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, netclient.ErrClosed) {
		log.Warn().Err(err).Msg("⚠️ Network client stopped with error")
	}
	engine.Dispose()

	if debugSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := debugSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("⚠️ Debug server shutdown")
		}
	}

	log.Info().Msg("Client stopped!")
}

// setupAudio picks the mixing backend. Without a PCM path the mix is
// pumped into a discarding sink.
func setupAudio(cfg config.AudioConfig, log zerolog.Logger) (audio.Backend, func()) {
	if !cfg.Enabled {
		log.Info().Msg("🔇 Audio disabled")
		return audio.NewNopBackend(), func() {}
	}

	sink, err := audio.OpenSink(cfg.PCMOut)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.PCMOut).Msg("❌ PCM sink unavailable, audio disabled")
		return audio.NewNopBackend(), func() {}
	}

	opts := audio.BeepOptions{
		SampleRate: cfg.SampleRate,
		Volume:     cfg.Volume,
		Sink:       sink,
		FPS:        30,
		Logger:     logging.Component(log, "mixer"),
	}
	b := audio.NewBeepBackend(opts)
	n, err := b.LoadDir(cfg.ClipDir)
	if err != nil {
		log.Warn().Err(err).Str("dir", cfg.ClipDir).Msg("⚠️ No sound clips loaded")
	} else {
		log.Info().Int("clips", n).Str("dir", cfg.ClipDir).Msg("🔊 Sound clips loaded")
	}

	return b, func() {
		b.Close()
		sink.Close()
	}
}
