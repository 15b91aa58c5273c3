package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/programme-lv/cptester/api"
	"github.com/programme-lv/cptester/internal/behave"
	"github.com/programme-lv/cptester/internal/compile"
	"github.com/programme-lv/cptester/internal/config"
	"github.com/programme-lv/cptester/internal/environment"
	"github.com/programme-lv/cptester/internal/gatherer/multigath"
	"github.com/programme-lv/cptester/internal/gatherer/natsgath"
	"github.com/programme-lv/cptester/internal/gatherer/respbuilder"
	"github.com/programme-lv/cptester/internal/gatherer/termgath"
	"github.com/programme-lv/cptester/internal/lang"
	"github.com/programme-lv/cptester/internal/persist"
	"github.com/programme-lv/cptester/internal/persist/filestore"
	"github.com/programme-lv/cptester/internal/persist/sqsstore"
	"github.com/programme-lv/cptester/internal/runner"
	"github.com/programme-lv/cptester/internal/workspace"
	"github.com/programme-lv/cptester/internal/xdg"
	"github.com/urfave/cli/v3"
)

type app struct {
	env  *environment.EnvConfig
	dirs *xdg.Dirs
}

func newApp(env *environment.EnvConfig) *cli.Command {
	a := &app{env: env, dirs: xdg.New(xdg.App)}

	workspaceDir := env.Workspace
	if workspaceDir == "" {
		workspaceDir = "workspace"
	}
	configPath := env.ConfigPath
	if configPath == "" {
		configPath = a.dirs.ConfigFile()
	}
	logLevel := env.LogLevel
	if logLevel == "" {
		logLevel = "info"
	}
	resultsDir := env.ResultsDir
	if resultsDir == "" {
		resultsDir = a.dirs.ResultsDir()
	}

	runFlags := []cli.Flag{
		&cli.IntFlag{Name: "tests", Aliases: []string{"n"}, Value: 100, Usage: "number of generated tests"},
		&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "maximum parallel workers (0 = default for the test type)"},
		&cli.BoolFlag{Name: "fail-fast", Usage: "stop dispatching tests after the first failure"},
		&cli.DurationFlag{Name: "time-limit", Usage: "benchmark time limit per test"},
		&cli.IntFlag{Name: "memory-limit", Usage: "benchmark memory limit in MB"},
		&cli.StringFlag{Name: "compare-mode", Usage: "output comparison: lines, strict or tokens"},
		&cli.BoolFlag{Name: "compress-io", Usage: "store test inputs and outputs zstd compressed"},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "print worker and stage events"},
	}

	return &cli.Command{
		Name:  "cptester",
		Usage: "stress test competitive programming solutions",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "workspace", Value: workspaceDir, Usage: "workspace root directory"},
			&cli.StringFlag{Name: "config", Value: configPath, Usage: "TOML configuration file"},
			&cli.StringFlag{Name: "log-level", Value: logLevel, Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "nats-url", Value: env.NatsURL, Usage: "stream progress to this NATS server"},
			&cli.StringFlag{Name: "results-dir", Value: resultsDir, Usage: "directory of persisted run summaries"},
			&cli.BoolFlag{Name: "json", Usage: "print the run report as JSON"},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return ctx, setupLogger(cmd.String("log-level"))
		},
		Commands: []*cli.Command{
			{
				Name:      "detect",
				Usage:     "print the language of a source file",
				ArgsUsage: "<file>",
				Action:    a.detect,
			},
			{
				Name:      "compile",
				Usage:     "compile the sources of a test type",
				ArgsUsage: "<comparator|validator|benchmarker>",
				Action:    a.compile,
			},
			{
				Name:   "compare",
				Usage:  "compare a solution against a correct one on generated tests",
				Flags:  runFlags,
				Action: a.runAction(api.Comparator),
			},
			{
				Name:   "validate",
				Usage:  "check a solution with a validator on generated tests",
				Flags:  runFlags,
				Action: a.runAction(api.Validator),
			},
			{
				Name:   "benchmark",
				Usage:  "run a solution under time and memory limits",
				Flags:  runFlags,
				Action: a.runAction(api.Benchmarker),
			},
			{
				Name:      "behave",
				Usage:     "run the scenarios of a TOML behaviour file",
				ArgsUsage: "<file.toml>",
				Action:    a.behave,
			},
			{
				Name:  "results",
				Usage: "inspect persisted run summaries",
				Commands: []*cli.Command{
					{Name: "list", Usage: "list stored runs", Action: a.resultsList},
					{Name: "show", Usage: "print one run", ArgsUsage: "<run-uuid>", Action: a.resultsShow},
				},
			},
		},
	}
}

// loadConfig applies file, then environment settings over the defaults.
func (a *app) loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if a.env.MaxWorkers > 0 {
		cfg.Run.MaxWorkers = a.env.MaxWorkers
	}
	return cfg, nil
}

func (a *app) detect(_ context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return cli.Exit("detect needs a file", 2)
	}
	l := lang.DetectFile(path)
	fmt.Println(l)
	if l == lang.Unknown {
		return cli.Exit("", 1)
	}
	return nil
}

func (a *app) compile(ctx context.Context, cmd *cli.Command) error {
	tt, err := api.ParseTestType(cmd.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}
	r, err := runner.New(runner.Options{
		TestType:  tt,
		Workspace: workspace.Layout{Root: cmd.String("workspace")},
		Config:    cfg,
		Sink:      termgath.New(os.Stdout, false),
	})
	if err != nil {
		return err
	}
	if err := r.Compile(ctx); err != nil {
		return cli.Exit(compileMessage(err), 1)
	}
	for role, art := range r.Artifacts() {
		slog.Debug("artifact", "role", role, "command", art.Command)
	}
	return nil
}

func compileMessage(err error) string {
	var ce *compile.CompilationError
	if errors.As(err, &ce) {
		return fmt.Sprintf("compilation of %s failed", ce.Role)
	}
	return err.Error()
}

// persistence builds the summary sinks: local files always, SQS when
// configured.
func (a *app) persistence(ctx context.Context, cmd *cli.Command) (persist.Sink, func(), error) {
	fs, err := filestore.New(cmd.String("results-dir"))
	if err != nil {
		return nil, nil, err
	}
	sinks := persist.Multi{fs}
	if a.env.SqsURL != "" {
		sq, err := sqsstore.New(ctx, a.env.SqsURL, a.env.AwsRegion)
		if err != nil {
			fs.Close()
			return nil, nil, err
		}
		sinks = append(sinks, sq)
	}
	return sinks, fs.Close, nil
}

func (a *app) runAction(tt api.TestType) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := a.loadConfig(cmd)
		if err != nil {
			return err
		}
		runUuid := uuid.NewString()
		jsonOut := cmd.Bool("json")

		sink := multigath.New()
		var report *respbuilder.Builder
		var term *termgath.TerminalGatherer
		if jsonOut {
			report = respbuilder.New(runUuid)
			sink.Add(report)
		} else {
			term = termgath.New(os.Stdout, cmd.Bool("verbose"))
			sink.Add(term)
		}
		if url := cmd.String("nats-url"); url != "" {
			nc, err := natsgath.Connect(url)
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer nc.Drain()
			sink.Add(natsgath.New(nc, runUuid, a.env.NatsSubject))
		}

		store, closeStore, err := a.persistence(ctx, cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		r, err := runner.New(runner.Options{
			TestType:  tt,
			Workspace: workspace.Layout{Root: cmd.String("workspace")},
			Config:    cfg,
			Sink:      sink,
			Store:     store,
		})
		if err != nil {
			return err
		}
		if cmd.IsSet("compress-io") {
			r.SetCompressIO(cmd.Bool("compress-io"))
		}
		stopOnCancel := context.AfterFunc(ctx, r.Stop)
		defer stopOnCancel()

		req := api.RunReq{
			RunUuid:       runUuid,
			TestType:      tt,
			Tests:         int(cmd.Int("tests")),
			Workers:       int(cmd.Int("workers")),
			TimeLimitMs:   cmd.Duration("time-limit").Milliseconds(),
			MemoryLimitMB: int64(cmd.Int("memory-limit")),
			CompareMode:   cmd.String("compare-mode"),
		}
		if cmd.IsSet("fail-fast") {
			ff := cmd.Bool("fail-fast")
			req.FailFast = &ff
		}

		summary, err := r.Execute(ctx, req)
		if jsonOut {
			out := struct {
				Report  api.RunReport    `json:"report"`
				Summary *api.TestSummary `json:"summary,omitempty"`
			}{report.Report(), summary}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(out); encErr != nil {
				return encErr
			}
		}
		if err != nil {
			return cli.Exit(compileMessage(err), 1)
		}
		if term != nil {
			term.Summary(summary)
		}
		if !summary.OverallPassed {
			return cli.Exit("", 1)
		}
		return nil
	}
}

func (a *app) behave(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return cli.Exit("behave needs a scenario file", 2)
	}
	cases, err := behave.Parse(path)
	if err != nil {
		return err
	}
	base, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}
	root, err := os.MkdirTemp("", "cptester-behave-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(root)

	failed := 0
	for i, c := range cases {
		start := time.Now()
		diffs, err := a.runCase(ctx, c, base, filepath.Join(root, fmt.Sprint(i+1)))
		switch {
		case err != nil:
			failed++
			fmt.Printf("FAIL %s: %v\n", c.Name, err)
		case len(diffs) > 0:
			failed++
			fmt.Printf("FAIL %s\n", c.Name)
			for _, d := range diffs {
				fmt.Printf("     %s\n", d)
			}
		default:
			fmt.Printf("ok   %s (%s)\n", c.Name, time.Since(start).Round(time.Millisecond))
		}
		if ctx.Err() != nil {
			break
		}
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d scenarios failed", failed, len(cases)), 1)
	}
	return nil
}

func (a *app) runCase(ctx context.Context, c behave.Case, base *config.Config, root string) ([]string, error) {
	layout, files, err := c.Materialize(root)
	if err != nil {
		return nil, err
	}
	r, err := runner.New(runner.Options{
		TestType:  c.Request.TestType,
		Workspace: layout,
		Sources:   files,
		Config:    c.Config(base),
	})
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.Timeout())
	defer cancel()
	summary, err := r.Execute(ctx, c.Request)
	if err != nil {
		return nil, err
	}
	return c.Check(summary), nil
}

func (a *app) resultsList(_ context.Context, cmd *cli.Command) error {
	fs, err := filestore.New(cmd.String("results-dir"))
	if err != nil {
		return err
	}
	defer fs.Close()
	entries, err := fs.List()
	if err != nil {
		return err
	}
	for _, e := range entries {
		status := "passed"
		if !e.OverallPassed {
			status = "failed"
		}
		fmt.Printf("%s  %-11s  %3d/%-3d %s  %s\n", e.RunUuid, e.TestType, e.Passed, e.Total, status,
			e.StartedAt.Local().Format(time.DateTime))
	}
	return nil
}

func (a *app) resultsShow(_ context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return cli.Exit("results show needs a run uuid", 2)
	}
	fs, err := filestore.New(cmd.String("results-dir"))
	if err != nil {
		return err
	}
	defer fs.Close()
	s, err := fs.Load(id)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	term := termgath.New(os.Stdout, false)
	for _, tc := range s.Tests {
		term.TestCompleted(tc)
	}
	term.Summary(s)
	return nil
}
