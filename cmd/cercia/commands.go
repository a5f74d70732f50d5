package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/cercia-labs/cercia-core/internal/adapters/httpapi"
	"github.com/cercia-labs/cercia-core/internal/app/accounts"
	"github.com/cercia-labs/cercia-core/internal/app/votes"
	"github.com/cercia-labs/cercia-core/internal/domain"
	"github.com/cercia-labs/cercia-core/internal/platform/config"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the local bridge for the browser extension",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (overrides bridge.addr)",
			},
		},
		Action: func(c *cli.Context) error {
			return withCore(c, func(ctx context.Context, core *core) error {
				addr := core.cfg.Bridge.Addr
				if a := c.String("addr"); a != "" {
					addr = a
				}
				return serve(ctx, core, addr)
			})
		},
	}
}

func serve(ctx context.Context, core *core, addr string) error {
	log := core.log

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if sess, ok, err := core.accounts.Restore(ctx); err != nil {
		log.Warn("stored login could not be revalidated", zap.Error(err))
	} else if ok {
		log.Info("restored login", zap.String("agent", sess.Agent.Name), zap.Bool("claimed", sess.Agent.IsClaimed))
	}

	events, err := core.accounts.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch credentials: %w", err)
	}
	go func() {
		for ev := range events {
			if ev.LoggedOut {
				log.Info("logged out")
			} else {
				log.Info("credentials changed")
			}
		}
	}()

	opts := httpapi.RouterOptions{
		Metrics: promhttp.HandlerFor(core.registry, promhttp.HandlerOpts{}),
		Logger:  log,
	}
	if core.cfg.Bridge.Token != "" {
		opts.AuthMiddleware = httpapi.NewTokenMiddleware(core.cfg.Bridge.Token)
	} else {
		log.Warn("bridge.token is not set; any local process can use the bridge")
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           httpapi.NewRouterWithOptions(core.server, opts),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("bridge listening", zap.String("addr", addr), zap.String("storage", core.cfg.Storage.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func voteCommand() *cli.Command {
	return &cli.Command{
		Name:      "vote",
		Usage:     "Vote on a post or comment as the logged-in agent",
		ArgsUsage: "post|comment <id> up|down",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "count",
				Usage: "Score currently displayed for the item",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 3 {
				return fmt.Errorf("usage: cercia vote post|comment <id> up|down")
			}
			ct, ok := domain.ParseContentType(c.Args().Get(0))
			if !ok {
				return fmt.Errorf("unknown content type %q (expected post|comment)", c.Args().Get(0))
			}
			dir, ok := domain.ParseDirection(c.Args().Get(2))
			if !ok {
				return fmt.Errorf("unknown direction %q (expected up|down)", c.Args().Get(2))
			}
			return withCore(c, func(ctx context.Context, core *core) error {
				res := core.votes.Vote(ctx, votes.VoteRequest{
					ContentType:    ct,
					ContentID:      c.Args().Get(1),
					Direction:      dir,
					DisplayedCount: c.Int("count"),
				})
				fmt.Printf("%s %s: %s (state=%s count=%d)\n", res.ContentType, res.ContentID, res.Outcome, stateLabel(res.State), res.Count)
				if res.Error != "" {
					fmt.Printf("  %s\n", res.Error)
				}
				switch res.Outcome {
				case votes.OutcomeConfirmed, votes.OutcomeAdopted:
					return nil
				default:
					return cli.Exit("", 1)
				}
			})
		},
	}
}

func votesCommand() *cli.Command {
	return &cli.Command{
		Name:  "votes",
		Usage: "List the locally recorded votes",
		Action: func(c *cli.Context) error {
			return withCore(c, func(ctx context.Context, core *core) error {
				records, err := core.voteStore.All(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TYPE\tID\tSTATE\tVOTED AT")
				for _, r := range records {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ContentType, r.ContentID, r.State, r.VotedAt.Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:      "login",
		Usage:     "Log in with a Moltbook API key",
		ArgsUsage: "<api-key>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("usage: cercia login <api-key>")
			}
			return withCore(c, func(ctx context.Context, core *core) error {
				sess, err := core.accounts.LogIn(ctx, c.Args().First())
				if err != nil {
					return err
				}
				printSession(sess)
				return nil
			})
		},
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Forget the stored API key",
		Action: func(c *cli.Context) error {
			return withCore(c, func(ctx context.Context, core *core) error {
				if err := core.accounts.LogOut(ctx); err != nil {
					return err
				}
				fmt.Println("Logged out")
				return nil
			})
		},
	}
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the logged-in agent",
		Action: func(c *cli.Context) error {
			return withCore(c, func(ctx context.Context, core *core) error {
				sess, ok, err := core.accounts.Restore(ctx)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println("Not logged in")
					return nil
				}
				printSession(sess)
				return nil
			})
		},
	}
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Initialize a new configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
						Value:   "cercia.toml",
					},
				},
				Action: func(c *cli.Context) error {
					out := c.String("output")
					if err := config.InitConfig(out); err != nil {
						return fmt.Errorf("failed to initialize config: %w", err)
					}
					fmt.Printf("Created configuration file at %s\n", out)
					return nil
				},
			},
			{
				Name:  "validate",
				Usage: "Validate the configuration",
				Action: func(c *cli.Context) error {
					if _, err := loadConfig(c); err != nil {
						return err
					}
					fmt.Println("Configuration is valid")
					return nil
				},
			},
		},
	}
}

func printSession(s accounts.Session) {
	fmt.Printf("Agent: %s (karma %d)\n", s.Agent.Name, s.Agent.Karma)
	if !s.Unclaimed() {
		fmt.Println("Status: claimed")
		return
	}
	fmt.Println("Status: pending claim")
	if s.ClaimURL != "" {
		fmt.Printf("Claim URL: %s\n", s.ClaimURL)
	}
	if s.VerificationCode != "" {
		fmt.Printf("Verification code: %s\n", s.VerificationCode)
		fmt.Printf("Tweet: %s\n", accounts.ClaimTweetURL(s.Agent.Name, s.VerificationCode))
	}
}

func stateLabel(d domain.Direction) string {
	if d == domain.NoVote {
		return "none"
	}
	return strings.ToLower(string(d))
}
