package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"partyserver/announce"
	"partyserver/client"
	"partyserver/session"
	"partyserver/utils"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const releaseVersion = "1.0.0"

var _ session.Selector = (*client.Client)(nil)

func main() {
	// .env は任意
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &Config{}
	cobra.CheckErr(newCmd(cfg).ExecuteContext(ctx))
}

func run(ctx context.Context, cfg *Config) error {
	logger, err := utils.InitLogger(cfg.verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	api := client.New(cfg.server)
	gameID, err := api.GameLogin(ctx, cfg.game, cfg.gamePassword)
	if err != nil {
		return fmt.Errorf("game login: %w", err)
	}
	user, err := api.Login(ctx, gameID, cfg.user, cfg.password)
	if err != nil {
		return fmt.Errorf("user login: %w", err)
	}
	if !user.CanPlay && !user.Role.CanManageTenant() {
		return errors.New("this user is not allowed to enter game mode")
	}
	logger.Info("logged in", zap.Uint("gameID", gameID), zap.String("user", user.Username), zap.String("role", string(user.Role)))

	clock := clockwork.NewRealClock()
	speaker := announce.NewCommandSpeaker(cfg.speechCmd, logger)
	opts := []session.Option{}
	if !cfg.noWakeLock {
		opts = append(opts, session.WithWakeLock(session.NewCommandWakeLock(logger)))
	}
	orch := session.New(api, announce.New(speaker, clock, logger), session.NewCommandPlayer(cfg.playerCmd, logger), clock, logger,
		session.Config{Role: user.Role, Manual: cfg.manual, MinSeconds: cfg.minSeconds, MaxSeconds: cfg.maxSeconds},
		opts...)
	defer orch.Close()

	feed, unsubscribe := orch.Subscribe()
	defer unsubscribe()
	go printStates(feed, os.Stdout)

	fmt.Println(help)
	return commandLoop(ctx, orch, api, os.Stdin, os.Stdout)
}

const help = `commands: start | ahead | play | skip | end | continue | repeat | stop | pause | resume | reset
manual mode: users | challenges <userId> | pick <challengeId>
quit with: quit`

// printStates は状態が変わったときだけ表示します。
func printStates(feed <-chan session.Snapshot, w io.Writer) {
	var last session.State
	var lastErr error
	for snap := range feed {
		if snap.Err != nil && snap.Err != lastErr {
			fmt.Fprintf(w, "! %v\n", snap.Err)
		}
		lastErr = snap.Err
		if snap.State == last {
			continue
		}
		last = snap.State
		switch {
		case snap.Round != nil && snap.State == session.ThemeAudio:
			fmt.Fprintf(w, "[%s] %s proposes: %s\n", snap.State, snap.Round.Victim.Username, snap.Round.Challenge.Title)
		case snap.Remaining > 0:
			fmt.Fprintf(w, "[%s] %ds\n", snap.State, snap.Remaining)
		default:
			fmt.Fprintf(w, "[%s]\n", snap.State)
		}
		if len(snap.Numbers) > 0 {
			fmt.Fprintf(w, "    numbers: %v\n", snap.Numbers)
		}
	}
}

func commandLoop(ctx context.Context, orch *session.Orchestrator, api *client.Client, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			if fields[0] == "quit" || fields[0] == "exit" {
				return nil
			}
			if err := dispatch(ctx, orch, api, fields, out); err != nil {
				fmt.Fprintf(out, "! %v\n", err)
			}
		}
	}
}

func dispatch(ctx context.Context, orch *session.Orchestrator, api *client.Client, fields []string, out io.Writer) error {
	switch fields[0] {
	case "start":
		return orch.Start(ctx)
	case "ahead":
		return orch.SkipAhead()
	case "play":
		return orch.Play()
	case "skip":
		return orch.Skip()
	case "end":
		return orch.EndEarly()
	case "continue":
		return orch.Continue()
	case "repeat":
		return orch.Repeat()
	case "stop":
		orch.StopAudio()
		return nil
	case "pause":
		return orch.PauseSpeech()
	case "resume":
		return orch.ResumeSpeech()
	case "reset":
		orch.Reset()
		return nil
	case "users":
		users, err := api.Users(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			fmt.Fprintf(out, "  %d  %s\n", u.ID, u.Username)
		}
		return nil
	case "challenges":
		id, err := argID(fields)
		if err != nil {
			return err
		}
		challenges, err := api.UserChallenges(ctx, id)
		if err != nil {
			return err
		}
		for _, ch := range challenges {
			fmt.Fprintf(out, "  %d  %s\n", ch.ID, ch.Title)
		}
		return nil
	case "pick":
		id, err := argID(fields)
		if err != nil {
			return err
		}
		return orch.ConfirmManual(id)
	case "help":
		fmt.Fprintln(out, help)
		return nil
	}
	return fmt.Errorf("unknown command %q", fields[0])
}

func argID(fields []string) (uint, error) {
	if len(fields) < 2 {
		return 0, fmt.Errorf("%s needs an id", fields[0])
	}
	id, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", fields[1])
	}
	return uint(id), nil
}
