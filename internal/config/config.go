// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for client tuning values.
//
// Values are layered: defaults, then an optional TOML file, then
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ErrInvalid is returned by Validate when a value is unusable.
var ErrInvalid = errors.New("invalid config")

// DefaultConfigFile is read when CLIENT_CONFIG_FILE is not set and the file exists.
const DefaultConfigFile = "client.toml"

// =============================================================================
// PLATFORM PROFILE
// =============================================================================

// Profile selects the capacity caps used by effects, bullets and audio.
type Profile string

const (
	ProfileDesktop         Profile = "desktop"
	ProfileMobile          Profile = "mobile"
	ProfileMobileLandscape Profile = "mobileLandscape"
)

// IsTouch reports whether the profile is one of the constrained touch profiles.
func (p Profile) IsTouch() bool {
	return p == ProfileMobile || p == ProfileMobileLandscape
}

// ParseProfile maps a loose string to a Profile, defaulting to desktop.
func ParseProfile(s string) Profile {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mobile", "touch":
		return ProfileMobile
	case "mobilelandscape", "mobile-landscape", "landscape":
		return ProfileMobileLandscape
	default:
		return ProfileDesktop
	}
}

// =============================================================================
// GAME RUNTIME OPTIONS
// =============================================================================

// GameConfig holds the runtime options the server also knows about.
type GameConfig struct {
	WorldWidth      float64 `toml:"world_width"`
	WorldHeight     float64 `toml:"world_height"`
	BulletSpeed     float64 `toml:"bullet_speed"` // world units per 60Hz tick
	BulletRange     float64 `toml:"bullet_range"`
	ShootCooldownMs int     `toml:"shoot_cooldown_ms"`
	BoostMax        float64 `toml:"boost_max"`
	PlayerSize      float64 `toml:"player_size"`
	BirdScale       float64 `toml:"bird_scale"` // sprite scale relative to PlayerSize
}

// DefaultGame returns the default game options.
func DefaultGame() GameConfig {
	return GameConfig{
		WorldWidth:      2000,
		WorldHeight:     2000,
		BulletSpeed:     18,
		BulletRange:     310,
		ShootCooldownMs: 120,
		BoostMax:        100,
		PlayerSize:      25,
		BirdScale:       10.5,
	}
}

// GameFromEnv returns game options with environment variable overrides.
func GameFromEnv(cfg GameConfig) GameConfig {
	if v := getEnvFloat("WORLD_WIDTH", 0); v > 0 {
		cfg.WorldWidth = v
	}
	if v := getEnvFloat("WORLD_HEIGHT", 0); v > 0 {
		cfg.WorldHeight = v
	}
	if v := getEnvFloat("BULLET_SPEED", 0); v > 0 {
		cfg.BulletSpeed = v
	}
	if v := getEnvFloat("BULLET_RANGE", 0); v > 0 {
		cfg.BulletRange = v
	}
	if v := getEnvInt("SHOOT_COOLDOWN_MS", 0); v > 0 {
		cfg.ShootCooldownMs = v
	}
	if v := getEnvFloat("BOOST_MAX", 0); v > 0 {
		cfg.BoostMax = v
	}
	return cfg
}

// BirdSize is the rendered bird size used for muzzle placement.
func (g GameConfig) BirdSize() float64 {
	return g.PlayerSize * g.BirdScale
}

// =============================================================================
// VIEWPORT CONFIGURATION
// =============================================================================

// ViewConfig holds the local viewport and frame pacing.
type ViewConfig struct {
	Width   int     `toml:"width"`
	Height  int     `toml:"height"`
	FPS     int     `toml:"fps"`
	Profile Profile `toml:"profile"`
}

// DefaultView returns the default viewport configuration.
func DefaultView() ViewConfig {
	return ViewConfig{
		Width:   1280,
		Height:  720,
		FPS:     60,
		Profile: ProfileDesktop,
	}
}

// ViewFromEnv returns viewport configuration with environment variable overrides.
func ViewFromEnv(cfg ViewConfig) ViewConfig {
	if w := getEnvInt("VIEW_WIDTH", 0); w > 0 {
		cfg.Width = w
	}
	if h := getEnvInt("VIEW_HEIGHT", 0); h > 0 {
		cfg.Height = h
	}
	if fps := getEnvInt("VIEW_FPS", 0); fps > 0 {
		cfg.FPS = fps
	}
	if p := os.Getenv("CLIENT_PROFILE"); p != "" {
		cfg.Profile = ParseProfile(p)
	}
	return cfg
}

// =============================================================================
// AUDIO CONFIGURATION
// =============================================================================

// AudioConfig holds mixer and clip settings.
type AudioConfig struct {
	SampleRate int     `toml:"sample_rate"`
	Volume     float64 `toml:"volume"` // master volume (0.0 to 1.0)
	Enabled    bool    `toml:"enabled"`
	ClipDir    string  `toml:"clip_dir"` // directory holding shot/hit/pickup/death clips
	PCMOut     string  `toml:"pcm_out"`  // s16le stereo sink (file or fifo); empty discards
}

// DefaultAudio returns the default audio configuration.
func DefaultAudio() AudioConfig {
	return AudioConfig{
		SampleRate: 44100,
		Volume:     0.8,
		Enabled:    true,
		ClipDir:    "assets/sfx",
	}
}

// AudioFromEnv returns audio configuration with environment variable overrides.
func AudioFromEnv(cfg AudioConfig) AudioConfig {
	if v := getEnvFloat("SFX_VOLUME", -1); v >= 0 {
		cfg.Volume = v
	}
	if os.Getenv("SFX_ENABLED") == "false" {
		cfg.Enabled = false
	}
	if d := os.Getenv("SFX_DIR"); d != "" {
		cfg.ClipDir = d
	}
	if out := os.Getenv("SFX_PCM_OUT"); out != "" {
		cfg.PCMOut = out
	}
	return cfg
}

// =============================================================================
// NETWORK CONFIGURATION
// =============================================================================

// NetworkConfig holds game server connection settings.
type NetworkConfig struct {
	ServerURL        string `toml:"server_url"`
	PlayerName       string `toml:"player_name"`
	ReconnectDelayMs int    `toml:"reconnect_delay_ms"`
	IntentRate       int    `toml:"intent_rate"` // max outgoing intents per second
}

// DefaultNetwork returns the default network configuration.
func DefaultNetwork() NetworkConfig {
	return NetworkConfig{
		ServerURL:        "ws://localhost:3001/ws",
		PlayerName:       "player",
		ReconnectDelayMs: 2000,
		IntentRate:       60,
	}
}

// NetworkFromEnv returns network configuration with environment variable overrides.
func NetworkFromEnv(cfg NetworkConfig) NetworkConfig {
	if u := os.Getenv("SERVER_URL"); u != "" {
		cfg.ServerURL = u
	}
	if n := os.Getenv("PLAYER_NAME"); n != "" {
		cfg.PlayerName = n
	}
	if d := getEnvInt("RECONNECT_DELAY_MS", 0); d > 0 {
		cfg.ReconnectDelayMs = d
	}
	return cfg
}

// =============================================================================
// DEBUG & LOGGING
// =============================================================================

// DebugConfig holds the debug HTTP server settings.
type DebugConfig struct {
	Enabled     bool     `toml:"enabled"`
	Addr        string   `toml:"addr"`
	CORSOrigins []string `toml:"cors_origins"`
	SnapshotDir string   `toml:"snapshot_dir"` // when set, PNG frames are written on demand
}

// DefaultDebug returns the default debug configuration.
func DefaultDebug() DebugConfig {
	return DebugConfig{
		Enabled:     true,
		Addr:        "127.0.0.1:6061",
		CORSOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
	}
}

// DebugFromEnv returns debug configuration with environment variable overrides.
func DebugFromEnv(cfg DebugConfig) DebugConfig {
	if os.Getenv("DEBUG_SERVER") == "false" {
		cfg.Enabled = false
	}
	if a := os.Getenv("DEBUG_ADDR"); a != "" {
		cfg.Addr = a
	}
	if d := os.Getenv("RENDER_SNAPSHOT_DIR"); d != "" {
		cfg.SnapshotDir = d
	}
	return cfg
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// DefaultLog returns the default logging configuration.
func DefaultLog() LogConfig {
	return LogConfig{Level: "info", Pretty: true}
}

// LogFromEnv returns logging configuration with environment variable overrides.
func LogFromEnv(cfg LogConfig) LogConfig {
	if l := os.Getenv("LOG_LEVEL"); l != "" {
		cfg.Level = l
	}
	if p := os.Getenv("LOG_PRETTY"); p != "" {
		cfg.Pretty = p == "true" || p == "1"
	}
	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Game    GameConfig    `toml:"game"`
	View    ViewConfig    `toml:"view"`
	Audio   AudioConfig   `toml:"audio"`
	Network NetworkConfig `toml:"network"`
	Debug   DebugConfig   `toml:"debug"`
	Log     LogConfig     `toml:"log"`
}

// Default returns the complete default configuration.
func Default() AppConfig {
	return AppConfig{
		Game:    DefaultGame(),
		View:    DefaultView(),
		Audio:   DefaultAudio(),
		Network: DefaultNetwork(),
		Debug:   DefaultDebug(),
		Log:     DefaultLog(),
	}
}

// Load returns the complete configuration: defaults, then the TOML file
// (CLIENT_CONFIG_FILE or client.toml if present), then environment overrides.
func Load() (AppConfig, error) {
	cfg := Default()

	path := os.Getenv("CLIENT_CONFIG_FILE")
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	if err := mergeFile(&cfg, path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return cfg, err
		}
	}

	cfg.Game = GameFromEnv(cfg.Game)
	cfg.View = ViewFromEnv(cfg.View)
	cfg.Audio = AudioFromEnv(cfg.Audio)
	cfg.Network = NetworkFromEnv(cfg.Network)
	cfg.Debug = DebugFromEnv(cfg.Debug)
	cfg.Log = LogFromEnv(cfg.Log)

	return cfg, cfg.Validate()
}

// Parse decodes TOML over the defaults without reading the environment.
func Parse(data []byte) (AppConfig, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.View.Profile = ParseProfile(string(cfg.View.Profile))
	return cfg, cfg.Validate()
}

// Validate checks that every value the engine divides by or sizes with is usable.
func (c AppConfig) Validate() error {
	switch {
	case c.Game.WorldWidth <= 0 || c.Game.WorldHeight <= 0:
		return fmt.Errorf("%w: world size %gx%g", ErrInvalid, c.Game.WorldWidth, c.Game.WorldHeight)
	case c.Game.BulletSpeed <= 0:
		return fmt.Errorf("%w: bullet_speed %g", ErrInvalid, c.Game.BulletSpeed)
	case c.Game.BulletRange <= 0:
		return fmt.Errorf("%w: bullet_range %g", ErrInvalid, c.Game.BulletRange)
	case c.Game.ShootCooldownMs < 0:
		return fmt.Errorf("%w: shoot_cooldown_ms %d", ErrInvalid, c.Game.ShootCooldownMs)
	case c.Game.PlayerSize <= 0:
		return fmt.Errorf("%w: player_size %g", ErrInvalid, c.Game.PlayerSize)
	case c.View.Width <= 0 || c.View.Height <= 0:
		return fmt.Errorf("%w: viewport %dx%d", ErrInvalid, c.View.Width, c.View.Height)
	case c.View.FPS <= 0:
		return fmt.Errorf("%w: fps %d", ErrInvalid, c.View.FPS)
	case c.Audio.SampleRate <= 0:
		return fmt.Errorf("%w: sample_rate %d", ErrInvalid, c.Audio.SampleRate)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func mergeFile(cfg *AppConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.View.Profile = ParseProfile(string(cfg.View.Profile))
	return nil
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
