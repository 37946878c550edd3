package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Seednode/partyclient/motion"
	"github.com/Seednode/partyclient/protocol"
	"github.com/Seednode/partyclient/voice"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	audioOut       string
	bind           string
	chunkSize      int
	debugTraffic   bool
	dialsPerMinute int
	far            float64
	fps            int
	gainTau        time.Duration
	jitterAhead    time.Duration
	jitterLag      time.Duration
	joinURL        string
	meterHz        int
	meterWindow    int
	mic            string
	name           string
	near           float64
	noiseFloor     float64
	port           int
	prefix         string
	profile        bool
	reconnectDelay time.Duration
	room           string
	serverURL      string
	smoothing      float64
	snapEpsilon    float64
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
	viewportHeight float64
	viewportWidth  float64
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.name) == "" {
		return errors.New("a player name is required (--name)")
	}
	u, err := url.Parse(c.serverURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return fmt.Errorf("invalid server url (must be ws:// or wss://): %q", c.serverURL)
	}
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 0 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 0-65535 inclusive): %d", c.port)
	}
	if c.fps < 1 || c.fps > 240 {
		return fmt.Errorf("invalid frame rate (must be between 1-240 inclusive): %d", c.fps)
	}
	if c.meterHz < 10 || c.meterHz > 20 {
		return fmt.Errorf("invalid meter rate (must be between 10-20 inclusive): %d", c.meterHz)
	}
	if c.meterWindow < 32 || c.meterWindow > 32768 || c.meterWindow&(c.meterWindow-1) != 0 {
		return fmt.Errorf("invalid meter window (must be a power of two between 32-32768): %d", c.meterWindow)
	}
	if c.smoothing <= 0 || c.smoothing >= 1 {
		return fmt.Errorf("invalid smoothing factor (must be between 0 and 1 exclusive): %v", c.smoothing)
	}
	if c.snapEpsilon < 0 {
		return fmt.Errorf("invalid snap epsilon (must not be negative): %v", c.snapEpsilon)
	}
	if c.near < 0 || c.far <= c.near {
		return fmt.Errorf("invalid falloff (need 0 <= near < far): %v, %v", c.near, c.far)
	}
	if c.jitterLag < 0 || c.jitterAhead < 0 {
		return errors.New("jitter bounds must not be negative")
	}
	if c.chunkSize < 128 || c.chunkSize > 1<<16 {
		return fmt.Errorf("invalid chunk size (must be between 128-65536 samples): %d", c.chunkSize)
	}
	if c.noiseFloor < 0 || c.noiseFloor >= 1 {
		return fmt.Errorf("invalid noise floor (must be in [0, 1)): %v", c.noiseFloor)
	}
	if c.viewportWidth <= 0 || c.viewportHeight <= 0 {
		return errors.New("viewport dimensions must be positive")
	}
	if c.reconnectDelay <= 0 {
		return errors.New("reconnect delay must be positive")
	}
	if c.dialsPerMinute < 1 {
		return fmt.Errorf("invalid dial cap (must be at least 1): %d", c.dialsPerMinute)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) tau() time.Duration {
	return motion.TimeConstant(c.smoothing, motion.DefaultRate)
}

func (c *Config) viewport() motion.Viewport {
	return motion.Viewport{Width: c.viewportWidth, Height: c.viewportHeight}
}

func (c *Config) jitter() voice.JitterPolicy {
	return voice.JitterPolicy{MaxLag: c.jitterLag, MaxAhead: c.jitterAhead}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PARTYCLIENT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "partyclient",
		Short:         "A headless realtime client for party game sessions.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return Run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&cfg.audioOut, "audio-out", "", "write mixed peer audio as raw s16le 48kHz mono to this file, or - for stdout (env: PARTYCLIENT_AUDIO_OUT)")
	fs.StringVarP(&cfg.bind, "bind", "b", "127.0.0.1", "address to bind the debug server to (env: PARTYCLIENT_BIND)")
	fs.IntVar(&cfg.chunkSize, "chunk-size", voice.DefaultChunkSize, "samples per outgoing audio chunk (env: PARTYCLIENT_CHUNK_SIZE)")
	fs.BoolVar(&cfg.debugTraffic, "debug-traffic", false, "log raw inbound and outbound messages, except media (env: PARTYCLIENT_DEBUG_TRAFFIC)")
	fs.IntVar(&cfg.dialsPerMinute, "dials-per-minute", 12, "maximum reconnect attempts per minute (env: PARTYCLIENT_DIALS_PER_MINUTE)")
	fs.Float64Var(&cfg.far, "far", voice.DefaultFar, "distance at which peers become inaudible (env: PARTYCLIENT_FAR)")
	fs.IntVar(&cfg.fps, "fps", motion.DefaultRate, "frame loop rate (env: PARTYCLIENT_FPS)")
	fs.DurationVar(&cfg.gainTau, "gain-tau", voice.DefaultGainTau, "time constant for peer gain changes (env: PARTYCLIENT_GAIN_TAU)")
	fs.DurationVar(&cfg.jitterAhead, "jitter-ahead", voice.DefaultMaxAhead, "maximum audio buffered ahead of playback per peer (env: PARTYCLIENT_JITTER_AHEAD)")
	fs.DurationVar(&cfg.jitterLag, "jitter-lag", voice.DefaultMaxLag, "gap after which a peer's playback restarts at now (env: PARTYCLIENT_JITTER_LAG)")
	fs.StringVar(&cfg.joinURL, "join-url", "http://localhost:3000/", "page encoded in the room QR code (env: PARTYCLIENT_JOIN_URL)")
	fs.IntVar(&cfg.meterHz, "meter-hz", 15, "speaking level update rate, 10-20Hz (env: PARTYCLIENT_METER_HZ)")
	fs.IntVar(&cfg.meterWindow, "meter-window", voice.DefaultMeterWindow, "analyser size in samples for speaking levels, a power of two (env: PARTYCLIENT_METER_WINDOW)")
	fs.StringVar(&cfg.mic, "mic", "", "read microphone audio as raw s16le 48kHz mono from this file, or - for stdin (env: PARTYCLIENT_MIC)")
	fs.StringVarP(&cfg.name, "name", "n", "", "player name (env: PARTYCLIENT_NAME)")
	fs.Float64Var(&cfg.near, "near", voice.DefaultNear, "distance within which peers are at full volume (env: PARTYCLIENT_NEAR)")
	fs.Float64Var(&cfg.noiseFloor, "noise-floor", voice.DefaultNoiseFloor, "speaking levels below this are reported as silence (env: PARTYCLIENT_NOISE_FLOOR)")
	fs.IntVarP(&cfg.port, "port", "p", 8081, "debug server port, 0 to disable (env: PARTYCLIENT_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all debug URLs, for use behind reverse proxy (env: PARTYCLIENT_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: PARTYCLIENT_PROFILE)")
	fs.DurationVar(&cfg.reconnectDelay, "reconnect-delay", 2*time.Second, "delay before reconnecting after a closed connection (env: PARTYCLIENT_RECONNECT_DELAY)")
	fs.StringVarP(&cfg.room, "room", "r", "", "room code to join; empty creates a room (env: PARTYCLIENT_ROOM)")
	fs.StringVarP(&cfg.serverURL, "url", "u", "ws://localhost:8000/ws", "game server websocket url (env: PARTYCLIENT_URL)")
	fs.Float64Var(&cfg.smoothing, "smoothing", motion.DefaultFactor, "fraction of remaining distance covered per frame at 60fps (env: PARTYCLIENT_SMOOTHING)")
	fs.Float64Var(&cfg.snapEpsilon, "snap-epsilon", motion.DefaultEpsilon, "distance below which visual positions snap to target (env: PARTYCLIENT_SNAP_EPSILON)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate for the debug server (env: PARTYCLIENT_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile for the debug server (env: PARTYCLIENT_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: PARTYCLIENT_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: PARTYCLIENT_VERSION)")
	fs.Float64Var(&cfg.viewportHeight, "viewport-height", motion.DefaultViewport.Height, "viewport height used for the camera transform (env: PARTYCLIENT_VIEWPORT_HEIGHT)")
	fs.Float64Var(&cfg.viewportWidth, "viewport-width", motion.DefaultViewport.Width, "viewport width used for the camera transform (env: PARTYCLIENT_VIEWPORT_WIDTH)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.AddCommand(newSchemaCmd())

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("partyclient v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of every inbound message type.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := json.MarshalIndent(protocol.Schemas(), "", "  ")
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))

			return err
		},
	}
}
