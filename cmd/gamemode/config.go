package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	server       string
	game         string
	gamePassword string
	user         string
	password     string
	manual       bool
	minSeconds   int
	maxSeconds   int
	speechCmd    string
	playerCmd    string
	noWakeLock   bool
	verbose      bool
}

func (c *Config) validate() error {
	if c.server == "" {
		return errors.New("--server is required")
	}
	if c.game == "" || c.user == "" {
		return errors.New("--game and --user are required")
	}
	if c.maxSeconds != 0 && c.maxSeconds < c.minSeconds {
		return fmt.Errorf("--max (%d) must not be below --min (%d)", c.maxSeconds, c.minSeconds)
	}
	return nil
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("GAMEMODE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "gamemode",
		Short:         "Runs the family party game on this machine: countdown, theme song, spoken challenge and timer.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.server, "server", "s", "http://localhost:8080", "party server base URL (env: GAMEMODE_SERVER)")
	fs.StringVarP(&cfg.game, "game", "g", "", "family game name (env: GAMEMODE_GAME)")
	fs.StringVar(&cfg.gamePassword, "game-password", "", "family game password (env: GAMEMODE_GAME_PASSWORD)")
	fs.StringVarP(&cfg.user, "user", "u", "", "username (env: GAMEMODE_USER)")
	fs.StringVarP(&cfg.password, "password", "p", "", "user password (env: GAMEMODE_PASSWORD)")
	fs.BoolVarP(&cfg.manual, "manual", "m", false, "pick challenges by hand, family admins only (env: GAMEMODE_MANUAL)")
	fs.IntVar(&cfg.minSeconds, "min", 60, "shortest countdown in seconds, at least 60 (env: GAMEMODE_MIN)")
	fs.IntVar(&cfg.maxSeconds, "max", 300, "longest countdown in seconds (env: GAMEMODE_MAX)")
	fs.StringVar(&cfg.speechCmd, "speech-cmd", "espeak-ng", "text-to-speech command (env: GAMEMODE_SPEECH_CMD)")
	fs.StringVar(&cfg.playerCmd, "player-cmd", "ffplay", "audio player command (env: GAMEMODE_PLAYER_CMD)")
	fs.BoolVar(&cfg.noWakeLock, "no-wake-lock", false, "do not keep the machine awake (env: GAMEMODE_NO_WAKE_LOCK)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: GAMEMODE_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("gamemode v{{.Version}}\n")
	cmd.SilenceUsage = true

	return cmd
}
