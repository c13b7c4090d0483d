package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"gitduel/internal/adapter/apiclient"
	"gitduel/internal/adapter/tui/duel"
	"gitduel/internal/adapter/tui/uxerror"
	"gitduel/internal/domain"
	"gitduel/internal/infra/config"
	"gitduel/internal/infra/logger"
	"gitduel/internal/usecase/consumer"
	"gitduel/internal/usecase/gate"
	"gitduel/internal/usecase/narration"
)

var (
	compareRoast string
	comparePlain bool
	compareAPI   string
)

var compareCmd = &cobra.Command{
	Use:   "compare [user1 user2]",
	Short: "Compare two GitHub users",
	Long: `Compare two GitHub users against a running gitduel API.

Without --plain an interactive terminal UI opens; usernames given on the
command line start the comparison right away. With --plain the narration
is printed to stdout as it arrives.

Example:
  gitduel compare octocat torvalds
  gitduel compare octocat torvalds --roast both --plain`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return fmt.Errorf("expected two usernames, got %d", len(args))
		}
		if comparePlain && len(args) != 2 {
			return fmt.Errorf("--plain needs two usernames")
		}
		if compareRoast != "" {
			if _, err := domain.ParseRoastType(compareRoast); err != nil {
				return fmt.Errorf("--roast must be user1, user2 or both")
			}
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if compareAPI != "" {
			cfg.Client.APIBaseURL = compareAPI
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if comparePlain {
			log, closeLog, err := logger.New(cfg.Logger)
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			defer closeLog()
			return runPlain(ctx, cfg, log, os.Stdout, args[0], args[1], compareRoast)
		}
		return runTUI(ctx, cfg, args)
	},
}

func init() {
	compareCmd.Flags().StringVar(&compareRoast, "roast", "", "roast after comparing: user1, user2 or both")
	compareCmd.Flags().BoolVar(&comparePlain, "plain", false, "print the narration instead of opening the UI")
	compareCmd.Flags().StringVar(&compareAPI, "api", "", "API base URL (overrides client.api_base_url)")
}

func runTUI(ctx context.Context, cfg *config.Config, args []string) error {
	log, closeLog, err := logger.New(cfg.Logger, logger.WithTerminalUI())
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer closeLog()

	deps := duel.Deps{
		Backend: apiclient.New(cfg.Client, log),
		Logger:  log,
		Cadence: cfg.Pacing.Cadence,
		Server:  cfg.Client.APIBaseURL,
		Roast:   compareRoast,
	}
	copy(deps.Usernames[:], args)

	p := tea.NewProgram(duel.New(deps), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

// runPlain fetches the pair and prints the comparison, then the optional
// roast, at the configured cadence.
func runPlain(ctx context.Context, cfg *config.Config, log *slog.Logger, out io.Writer, u1, u2, roast string) error {
	client := apiclient.New(cfg.Client, log)

	pair, err := client.CompareProfiles(ctx, u1, u2)
	if err != nil {
		return errors.New(uxerror.Humanize(err).Render())
	}
	for _, p := range []domain.Profile{pair.First, pair.Second} {
		fmt.Fprintf(out, "%s (@%s): %d followers, %d repos, %d stars, %d commits\n",
			p.Name, p.Username, p.Followers, p.PublicRepos, p.TotalStars, p.TotalCommits)
	}
	fmt.Fprintln(out)

	session := narration.NewSession(gate.New(gate.RoastActions...), cfg.Pacing.Cadence)
	if err := narrate(ctx, client, session, pair, "", out); err != nil {
		return err
	}
	if roast == "" {
		return nil
	}
	fmt.Fprintln(out)
	return narrate(ctx, client, session, pair, roast, out)
}

// narrate runs one generation to completion and prints its text.
func narrate(ctx context.Context, client *apiclient.Client, s *narration.Session, pair domain.ProfilePair, action string, out io.Writer) error {
	var (
		gen  uint64
		ok   bool
		body io.ReadCloser
		err  error
	)
	if action == "" {
		gen, ok = s.StartNeutral()
	} else {
		gen, ok = s.Start(action)
	}
	if !ok {
		return fmt.Errorf("%s is not available right now", action)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if action == "" {
		body, err = client.StreamComparison(ctx, pair)
	} else {
		body, err = client.StreamRoast(ctx, pair, action)
	}
	if err != nil {
		s.Finish(gen, err)
		return errors.New(uxerror.Humanize(err).Render())
	}
	defer body.Close()

	printed := 0
	d := narration.NewDriver(s, func(rendered string) {
		fmt.Fprint(out, rendered[printed:])
		printed = len(rendered)
	})
	if err := d.Run(ctx, gen, consumer.Forward(ctx, body)); err != nil {
		return err
	}
	fmt.Fprintln(out)

	if err := s.Err(); err != nil {
		return errors.New(uxerror.Humanize(err).Render())
	}
	return nil
}
