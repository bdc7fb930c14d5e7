package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-router/internal/app"
	"github.com/spec-kit/ticket-router/internal/auth"
	"github.com/spec-kit/ticket-router/internal/config"
	"github.com/spec-kit/ticket-router/internal/events"
	"github.com/spec-kit/ticket-router/internal/ingest"
	"github.com/spec-kit/ticket-router/internal/mcp"
	"github.com/spec-kit/ticket-router/internal/observability"
)

// newCLIApp creates the CLI application with all commands. JSON results go to out.
func newCLIApp(out io.Writer) *cli.App {
	cliApp := &cli.App{
		Name:    "supportctl",
		Usage:   "Operate the support ticket router",
		Version: Version,
		Writer:  out,
		Commands: []*cli.Command{
			askCmd(),
			classifyCmd(),
			evalsetCmd(),
			ingestCmd(),
			mcpCmd(),
			tokenCmd(),
		},
	}
	cliApp.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return cliApp
}

// askCmd runs one question through the pipeline.
func askCmd() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Classify, route and answer one question",
		ArgsUsage: "<question>",
		Action: func(c *cli.Context) error {
			question := strings.Join(c.Args().Slice(), " ")
			return withComponents(c, false, func(ctx context.Context, comps *app.Components) error {
				result := comps.Tickets.Analyze(ctx, question, events.SourceCLI).Result
				if err := outputJSON(c.App.Writer, result); err != nil {
					return err
				}
				if result.Failed() {
					return fmt.Errorf("pipeline failed: %s", result.Code)
				}
				return nil
			})
		},
	}
}

// classifyCmd runs the bulk classification job over a file or the ticket store.
func classifyCmd() *cli.Command {
	return &cli.Command{
		Name:  "classify",
		Usage: "Classify tickets in bulk",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Usage: "JSON array of {id, subject, body}"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output path for classified tickets"},
			&cli.BoolFlag{Name: "stored", Usage: "Classify pending tickets from the ticket store"},
			&cli.IntFlag{Name: "limit", Value: 100, Usage: "Maximum stored tickets to classify"},
		},
		Action: func(c *cli.Context) error {
			stored := c.Bool("stored")
			if !stored && (c.String("in") == "" || c.String("out") == "") {
				return errors.New("either --stored or both --in and --out are required")
			}
			if stored && c.String("in") != "" {
				return errors.New("--stored and --in are mutually exclusive")
			}
			return withComponents(c, false, func(ctx context.Context, comps *app.Components) error {
				var (
					report any
					err    error
				)
				if stored {
					report, err = comps.Batch.ClassifyStored(ctx, c.Int("limit"))
				} else {
					report, err = comps.Batch.ClassifyFile(ctx, c.String("in"), c.String("out"))
				}
				if err != nil {
					return err
				}
				return outputJSON(c.App.Writer, report)
			})
		},
	}
}

// evalsetCmd answers a list of evaluation questions and records the answers
// and retrieved contexts next to the expected answers.
func evalsetCmd() *cli.Command {
	return &cli.Command{
		Name:      "evalset",
		Usage:     "Build a RAG evaluation dataset from {question, ground_truth} rows",
		ArgsUsage: "<in.json|in.csv> <out.json|out.csv>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return errors.New("evalset needs an input and an output path")
			}
			in, out := c.Args().Get(0), c.Args().Get(1)
			return withComponents(c, false, func(ctx context.Context, comps *app.Components) error {
				report, err := comps.Eval.EvalFile(ctx, in, out)
				if err != nil {
					return err
				}
				return outputJSON(c.App.Writer, report)
			})
		},
	}
}

// ingestCmd loads documentation pages into a vector collection.
func ingestCmd() *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Fetch, split and embed pages into a collection",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "urls", Aliases: []string{"u"}, Required: true, Usage: "JSON array of page URLs"},
			&cli.StringFlag{Name: "collection", Aliases: []string{"c"}, Required: true, Usage: "Target collection"},
		},
		Action: func(c *cli.Context) error {
			urls, err := ingest.LoadURLList(c.String("urls"))
			if err != nil {
				return err
			}
			return withComponents(c, false, func(ctx context.Context, comps *app.Components) error {
				if !slices.Contains(comps.Routes.Collections(), c.String("collection")) {
					return fmt.Errorf("collection %q is not used by the route table", c.String("collection"))
				}
				ingestor, err := comps.Ingestor()
				if err != nil {
					return err
				}
				report, err := ingestor.Ingest(ctx, c.String("collection"), urls)
				if err != nil {
					return err
				}
				return outputJSON(c.App.Writer, report)
			})
		},
	}
}

// mcpCmd serves the MCP tools over stdio. Logs go to stderr so stdout stays protocol only.
func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve analyze_ticket and classify_ticket over MCP stdio",
		Action: func(c *cli.Context) error {
			return withComponents(c, true, func(_ context.Context, comps *app.Components) error {
				return mcp.Run(mcp.NewHandlers(comps.Tickets, comps.Classifier, comps.Logger), Version)
			})
		},
	}
}

// tokenCmd mints a staff access token for the dashboard API.
func tokenCmd() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue a staff access token",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "staff", Required: true, Usage: "Staff id placed in the token subject"},
			&cli.StringFlag{Name: "role", Value: string(auth.RoleSupportAgent), Usage: "support_agent|support_lead"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
			token, expiresAt, err := tokens.GenerateToken(c.String("staff"), auth.Role(c.String("role")))
			if err != nil {
				return err
			}
			return outputJSON(c.App.Writer, map[string]any{
				"access_token": token,
				"expires_at":   expiresAt,
			})
		},
	}
}

// withComponents loads and validates configuration, builds the shared
// components and runs fn with a context cancelled on SIGINT or SIGTERM.
func withComponents(c *cli.Context, logToStderr bool, fn func(context.Context, *app.Components) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if logToStderr {
		cfg.Logger.Output = "stderr"
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	comps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", zap.Error(err))
		return err
	}
	defer comps.Close()
	return fn(ctx, comps)
}

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
