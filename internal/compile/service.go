package compile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/programme-lv/cptester/api"
	"github.com/programme-lv/cptester/internal/execute"
	"github.com/programme-lv/cptester/internal/lang"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// CompilationError carries the diagnostic text of a failed role.
type CompilationError struct {
	Role   api.Role
	Source string
	Output string
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("failed to compile %s (%s): %s", e.Role, e.Source, e.Output)
}

// Reporter receives human readable compilation progress.
type Reporter interface {
	CompilationOutput(text string)
}

type Result struct {
	Artifact *Artifact
	Err      error
}

// Service builds role sources into runnable artifacts and caches them.
type Service struct {
	outDir  string
	configs map[lang.Language]lang.Config
	exec    execute.Runner
	logger  *slog.Logger

	cache    *xsync.MapOf[string, *Artifact]
	inflight singleflight.Group
	compiles atomic.Int64
}

type Option func(*Service)

func WithRunner(r execute.Runner) Option {
	return func(s *Service) { s.exec = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a service writing artifacts to outDir. Languages missing
// from configs use the built-in defaults. A relative outDir is resolved
// against the working directory so artifact commands work from any cwd.
func New(outDir string, configs map[lang.Language]lang.Config, opts ...Option) *Service {
	if abs, err := filepath.Abs(outDir); err == nil {
		outDir = abs
	}
	merged := lang.DefaultConfigs()
	for l, c := range configs {
		merged[l] = merged[l].Merge(c)
	}
	s := &Service{
		outDir:  outDir,
		configs: merged,
		exec:    execute.New(),
		logger:  slog.Default(),
		cache:   xsync.NewMapOf[string, *Artifact](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compiles returns how many compiler or interpreter checks were invoked.
func (s *Service) Compiles() int64 { return s.compiles.Load() }

// Lookup returns the cached artifact for a source path.
func (s *Service) Lookup(path string) (*Artifact, bool) {
	return s.cache.Load(path)
}

// CompileAll compiles every role in parallel. The first failing role
// cancels the others and its *CompilationError is returned.
func (s *Service) CompileAll(ctx context.Context, files map[api.Role]SourceFile, rep Reporter) (map[api.Role]Result, error) {
	if err := os.MkdirAll(s.outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	var mu sync.Mutex
	results := make(map[api.Role]Result, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(len(files), runtime.NumCPU())))
	for role, src := range files {
		g.Go(func() error {
			a, err := s.Compile(gctx, src, rep)
			mu.Lock()
			results[role] = Result{Artifact: a, Err: err}
			mu.Unlock()
			return err
		})
	}
	err := g.Wait()
	if err != nil {
		// prefer the diagnostic of the role that actually failed over
		// cancellations of its siblings
		for _, r := range results {
			var ce *CompilationError
			if errors.As(r.Err, &ce) {
				return results, ce
			}
		}
	}
	return results, err
}

// Compile builds a single source, reusing the cached artifact while the
// source is unchanged. Concurrent calls for the same path share one build.
func (s *Service) Compile(ctx context.Context, src SourceFile, rep Reporter) (*Artifact, error) {
	v, err, _ := s.inflight.Do(src.Path, func() (any, error) {
		return s.compile(ctx, src, rep)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Artifact), nil
}

func (s *Service) compile(ctx context.Context, src SourceFile, rep Reporter) (*Artifact, error) {
	say := func(format string, args ...any) {
		if rep != nil {
			rep.CompilationOutput(fmt.Sprintf(format, args...))
		}
	}

	hash, err := hashFile(src.Path)
	if err != nil {
		return nil, &CompilationError{Role: src.Role, Source: src.Name(), Output: fmt.Sprintf("cannot read source: %v", err)}
	}

	cached, ok := s.cache.Load(src.Path)
	if !ok {
		if m, err := readManifest(s.outDir, src.Role); err == nil && m.SourcePath == src.Path {
			cached = m
		}
	}
	if cached.Valid(src, hash) {
		s.cache.Store(src.Path, cached)
		s.logger.Debug("artifact up to date", "role", src.Role, "path", cached.Path)
		say("%s is up to date", src.Name())
		return cached, nil
	}

	cfg, ok := s.configs[src.Language]
	if !ok {
		return nil, &CompilationError{Role: src.Role, Source: src.Name(), Output: fmt.Sprintf("unsupported language %q", src.Language)}
	}

	say("Compiling %s...", src.Name())
	start := time.Now()
	var art *Artifact
	switch src.Language {
	case lang.Cpp:
		art, err = s.compileCpp(ctx, src, cfg)
	case lang.Python:
		art, err = s.preparePython(ctx, src, cfg)
	case lang.Java:
		art, err = s.compileJava(ctx, src, cfg)
	default:
		err = &CompilationError{Role: src.Role, Source: src.Name(), Output: fmt.Sprintf("unsupported language %q", src.Language)}
	}
	if err != nil {
		var ce *CompilationError
		if errors.As(err, &ce) {
			say("Compilation of %s failed:\n%s", src.Name(), ce.Output)
		}
		s.logger.Warn("compilation failed", "role", src.Role, "source", src.Path, "error", err)
		return nil, err
	}

	art.Role = src.Role
	art.Language = src.Language
	art.SourcePath = src.Path
	art.SourceHash = hash
	art.CompiledAt = time.Now()

	s.cache.Store(src.Path, art)
	if err := writeManifest(s.outDir, art); err != nil {
		s.logger.Warn("failed to write build manifest", "role", src.Role, "error", err)
	}
	s.logger.Info("compiled", "role", src.Role, "language", src.Language, "took", time.Since(start).Round(time.Millisecond))
	say("Compiled %s in %.2fs", src.Name(), time.Since(start).Seconds())
	return art, nil
}
