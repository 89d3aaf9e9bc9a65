// Command caseenginectl drives workflow cases from the shell: start a new
// case, resume a pended one, or inspect a snapshot, against whichever Store
// backend the config selects.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/caseflow-io/caseengine/engine"
	"github.com/caseflow-io/caseengine/engine/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	configPath := fs.String("config", "", "path to caseenginectl.toml (default: ./caseenginectl.toml)")
	caseID := fs.String("case", "", "case ID")
	defnName := fs.String("defn", "", "workflow definition name (start only)")
	defnVersion := fs.String("version", "v1", "workflow definition version (start only)")
	varsJSON := fs.String("vars", "{}", "initial process variables as a JSON object (start only)")
	pathName := fs.String("path", "", "path name to resolve (resolve-pend only)")
	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}

	cfg := Load(*configPath)

	st, closeStore, err := openStore(cfg.Store)
	if err != nil {
		fatal(err)
	}
	defer closeStore()

	tp := newTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	opts := []engine.Option{
		engine.WithWorkerPoolSize(cfg.Engine.WorkerPoolSize),
		engine.WithMaxStepsPerDrive(cfg.Engine.MaxStepsPerDrive),
		engine.WithTracer(engine.NewTracer(tp.Tracer("caseenginectl"))),
	}
	if cfg.Engine.PathSeparator != "" {
		opts = append(opts, engine.WithPathSeparator(cfg.Engine.PathSeparator[0]))
	}
	if cfg.Engine.PersistAfterEachStep {
		opts = append(opts, engine.WithEagerPersistence())
	} else {
		opts = append(opts, engine.WithLazyPersistence())
	}

	registry := demoRegistry()
	eng := engine.New(registry, st, opts...)
	if err := eng.RegisterDefinition(demoDefinition()); err != nil {
		fatal(err)
	}

	ctx := context.Background()

	switch cmd {
	case "start":
		if *caseID == "" || *defnName == "" {
			fatal(fmt.Errorf("start requires -case and -defn"))
		}
		var raw map[string]interface{}
		if err := json.Unmarshal([]byte(*varsJSON), &raw); err != nil {
			fatal(fmt.Errorf("parse -vars: %w", err))
		}
		vars := engine.NewProcessVariables()
		for k, v := range raw {
			vars.Set(engine.Var{Name: k, Type: engine.VarObject, Value: v})
		}
		cs, err := eng.Start(ctx, *caseID, *defnName, *defnVersion, vars)
		printResult(cs, err)

	case "resume":
		if *caseID == "" {
			fatal(fmt.Errorf("resume requires -case"))
		}
		cs, err := eng.Resume(ctx, *caseID, nil)
		printResult(cs, err)

	case "resolve-pend":
		if *caseID == "" || *pathName == "" {
			fatal(fmt.Errorf("resolve-pend requires -case and -path"))
		}
		if err := eng.ResolvePend(ctx, *caseID, *pathName); err != nil {
			fatal(err)
		}
		fmt.Println("ok")

	case "inspect":
		if *caseID == "" {
			fatal(fmt.Errorf("inspect requires -case"))
		}
		cs, err := eng.Inspect(ctx, *caseID)
		printResult(cs, err)

	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: caseenginectl <start|resume|resolve-pend|inspect> [flags]")
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "caseenginectl:", err)
	os.Exit(1)
}

func printResult(cs engine.CaseState, err error) {
	if err != nil {
		fatal(err)
	}
	out, mErr := json.MarshalIndent(cs, "", "  ")
	if mErr != nil {
		fatal(mErr)
	}
	fmt.Println(string(out))
}

// newTracerProvider builds the process-wide span source for engine.WithTracer.
// caseenginectl has no collector to ship spans to, so it keeps the default
// no-op SpanProcessor chain rather than wiring WithBatcher/WithSyncer against
// an exporter that doesn't exist yet; a real deployment adds one here.
func newTracerProvider() *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider()
}

func openStore(cfg StoreConfig) (engine.Store, func(), error) {
	switch cfg.Driver {
	case "", "memory":
		return store.NewMemStore(), func() {}, nil
	case "sqlite":
		s, err := store.NewSQLiteStore(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "mysql":
		s, err := store.NewMySQLStore(context.Background(), cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
