// Command kvdoc hosts the kvdoc contract operations over a local database.
//
// Usage:
//
//	kvdoc [flags] serve                 read {"op","args"} lines from stdin
//	kvdoc [flags] invoke <op> [<args>]  run a single operation
//	kvdoc [flags] dump                  print database contents
//	kvdoc [flags] stats                 print database statistics
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/andreyvit/kvdoc"
	"github.com/andreyvit/kvdoc/contract"
	"github.com/andreyvit/kvdoc/internal/config"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

const maxRequestSize = 16 * 1024 * 1024

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "kvdoc: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fset := flag.NewFlagSet("kvdoc", flag.ContinueOnError)
	fset.SetOutput(stderr)
	var (
		showVersion bool
		configPath  string
		envFile     string
		dbPath      string
		inMemory    bool
		verbose     bool
	)
	fset.BoolVar(&showVersion, "version", false, "print version and exit")
	fset.StringVar(&configPath, "config", os.Getenv(config.EnvPrefix+"CONFIG"), "YAML config file")
	fset.StringVar(&envFile, "env", ".env", "env file to load if present")
	fset.StringVar(&dbPath, "db", "", "database file (overrides config)")
	fset.BoolVar(&inMemory, "mem", false, "use an in-memory database")
	fset.BoolVar(&verbose, "v", false, "log every database operation")
	if err := fset.Parse(args); err != nil {
		return err
	}

	if showVersion {
		fmt.Fprintf(stdout, "kvdoc %s (commit=%s, date=%s)\n", version, commit, date)
		return nil
	}

	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	cfg.InMemory = cfg.InMemory || inMemory
	cfg.Verbose = cfg.Verbose || verbose

	logger, err := newLogger(stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	defer logger.Sync()

	shutdown, err := initTracing(ctx, stderr, cfg.ServiceName, cfg.Tracing.Stdout)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer shutdown(context.Background())

	db, err := openDB(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	reg := contract.NewDefaultRegistry(db, contract.Options{Logger: logger})

	cmd := fset.Arg(0)
	switch cmd {
	case "serve":
		return serve(ctx, reg, stdin, stdout, logger)
	case "invoke":
		if fset.NArg() < 2 {
			return errors.New("usage: kvdoc invoke <op> [<args-json>]")
		}
		resp := invoke(ctx, reg, fset.Arg(1), []byte(fset.Arg(2)))
		if err := json.NewEncoder(stdout).Encode(resp); err != nil {
			return err
		}
		if resp.Status != statusOK {
			return errors.New(resp.Message)
		}
		return nil
	case "dump":
		db.Read(func(tx *kvdoc.Tx) {
			fmt.Fprint(stdout, tx.Dump(kvdoc.DumpAll))
		})
		return nil
	case "stats":
		var stats kvdoc.Stats
		db.Read(func(tx *kvdoc.Tx) {
			stats = tx.Stats()
		})
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	case "":
		fset.Usage()
		return errors.New("missing command")
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func openDB(cfg config.Config, logger *zap.Logger) (*kvdoc.DB, error) {
	opt := kvdoc.Options{
		Logger:   slogFor(logger),
		Verbose:  cfg.Verbose,
		MmapSize: cfg.MmapSize,
	}
	if cfg.InMemory {
		logger.Info("opening in-memory database")
		return kvdoc.OpenMem(opt), nil
	}
	logger.Info("opening database", zap.String("path", cfg.DBPath))
	return kvdoc.Open(cfg.DBPath, opt)
}

const (
	statusOK    = 200
	statusError = 500
)

type request struct {
	Op   string          `json:"op"`
	Args json.RawMessage `json:"args"`
}

type response struct {
	Status  int             `json:"status"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Message string          `json:"message,omitempty"`
}

func invoke(ctx context.Context, reg *contract.Registry, op string, args []byte) response {
	payload, err := reg.Invoke(ctx, op, args)
	if err != nil {
		return response{Status: statusError, Message: err.Error()}
	}
	return response{Status: statusOK, Payload: payloadJSON(payload)}
}

// payloadJSON embeds payloads that are JSON as-is and wraps anything else in
// a JSON string.
func payloadJSON(payload []byte) json.RawMessage {
	if len(payload) == 0 {
		return nil
	}
	if json.Valid(payload) {
		return payload
	}
	return must(json.Marshal(string(payload)))
}

// serve handles one request per input line until EOF or cancellation.
func serve(ctx context.Context, reg *contract.Registry, r io.Reader, w io.Writer, logger *zap.Logger) error {
	logger.Info("serving", zap.Strings("operations", reg.Operations()))
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxRequestSize)
	enc := json.NewEncoder(w)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var req request
		var resp response
		if err := json.Unmarshal(line, &req); err != nil {
			resp = response{Status: statusError, Message: fmt.Sprintf("invalid request: %v", err)}
		} else {
			resp = invoke(ctx, reg, req.Op, req.Args)
		}
		if err := enc.Encode(resp); err != nil {
			return err
		}
	}
	return sc.Err()
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
