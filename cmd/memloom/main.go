// cmd/memloom is the command-line entry point for the memory
// synchronization core. It wires the configured stores and LLM clients into
// the engine: all store handles are constructed here, once, and injected;
// nothing initializes itself on import.
//
// Usage:
//
//	memloom [-config path] sync   < record.json
//	memloom [-config path] update < record.json
//	memloom [-config path] query  "prompt text"
//	memloom [-config path] related <memory-id>
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/memloom/memloom/internal/config"
	"github.com/memloom/memloom/internal/engine"
	"github.com/memloom/memloom/internal/llm"
	"github.com/memloom/memloom/internal/storage"
	"github.com/memloom/memloom/internal/storage/chromem"
	"github.com/memloom/memloom/internal/storage/postgres"
	"github.com/memloom/memloom/internal/storage/sqlite"
	"github.com/memloom/memloom/pkg/types"
)

func main() {
	log.SetOutput(os.Stderr)
	log.SetPrefix("memloom: ")
	log.SetFlags(log.LstdFlags)

	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall operation timeout")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: memloom [-config path] <sync|update|query|related> [args]")
		os.Exit(2)
	}

	// Single exit point: log.Fatalf skips deferred calls, so everything that
	// holds store handles lives in runMain, whose defers run before the exit.
	if err := runMain(*configPath, *timeout, flag.Args()); err != nil {
		log.Fatalf("%v", err)
	}
}

func runMain(configPath string, timeout time.Duration, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	eng, err := buildEngine(cfg)
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}
	defer eng.Close()

	// The caller-level timeout is the cancellation mechanism for every
	// operation; store calls left in flight on expiry are abandoned in
	// place, with no compensating rollback.
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eng.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize stores: %w", err)
	}

	if err := run(ctx, eng, cfg, args); err != nil {
		return fmt.Errorf("%s failed: %w", args[0], err)
	}
	return nil
}

// buildEngine constructs the store handles and LLM clients from config and
// injects them into the engine.
func buildEngine(cfg *config.Config) (*engine.Engine, error) {
	ollama := llm.NewOllamaClient(llm.OllamaConfig{
		BaseURL:           cfg.LLM.OllamaURL,
		Model:             cfg.LLM.Model,
		EmbeddingModel:    cfg.LLM.EmbeddingModel,
		Timeout:           time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
	})

	embedder, err := llm.NewCachedEmbedder(ollama, cfg.LLM.EmbedCacheBytes)
	if err != nil {
		return nil, err
	}

	var index storage.VectorIndex
	switch cfg.Storage.VectorBackend {
	case "postgres":
		index, err = postgres.NewVectorIndex(cfg.Storage.PostgresDSN, cfg.Storage.EmbeddingDimension)
		if err != nil {
			return nil, err
		}
	default:
		index = chromem.NewVectorIndex()
	}

	for _, dir := range []string{filepath.Dir(cfg.Storage.LogPath), filepath.Dir(cfg.Storage.GraphPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
	}

	audit, err := sqlite.NewAppendLog(cfg.Storage.LogPath)
	if err != nil {
		return nil, err
	}

	graph, err := sqlite.NewGraphStore(cfg.Storage.GraphPath)
	if err != nil {
		return nil, err
	}

	return engine.New(engine.Deps{
		Index:      index,
		Graph:      graph,
		Audit:      audit,
		Completion: ollama,
		Embedder:   embedder,
	})
}

func run(ctx context.Context, eng *engine.Engine, cfg *config.Config, args []string) error {
	switch args[0] {
	case "sync":
		record, err := readRecord(os.Stdin)
		if err != nil {
			return err
		}
		result, err := eng.Coordinator.SyncWrite(ctx, record)
		if err != nil {
			return err
		}
		return printJSON(map[string]interface{}{
			"success": result.Success,
			"stores":  storeStatus(result),
		})

	case "update":
		record, err := readRecord(os.Stdin)
		if err != nil {
			return err
		}
		outcome, err := eng.Resolver.Update(ctx, record)
		if err != nil {
			return err
		}
		out := map[string]interface{}{"status": outcome.Status}
		if outcome.Record != nil {
			out["version"] = outcome.Record.Version
		}
		if outcome.Current != nil {
			out["current"] = outcome.Current
		}
		return printJSON(out)

	case "query":
		if len(args) < 2 {
			return fmt.Errorf("query requires a prompt argument")
		}
		results, err := eng.Ranker.Query(ctx, args[1], engine.QueryOptions{
			TopK: cfg.Query.TopK,
		}.WithWeights(cfg.Query.RecencyWeight, cfg.Query.ConfidenceWeight))
		if err != nil {
			return err
		}
		return printJSON(results)

	case "related":
		if len(args) < 2 {
			return fmt.Errorf("related requires a memory id argument")
		}
		related, err := eng.Pipeline.FindRelated(ctx, args[1], 3, 50)
		if err != nil {
			return err
		}
		return printJSON(related)

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func readRecord(f *os.File) (*types.MemoryRecord, error) {
	var record types.MemoryRecord
	if err := json.NewDecoder(f).Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to decode record from stdin: %w", err)
	}
	return &record, nil
}

// storeStatus renders per-store errors as strings for JSON output.
func storeStatus(result *engine.SyncResult) map[string]string {
	out := make(map[string]string, len(result.Stores))
	for store, err := range result.Stores {
		if err != nil {
			out[store] = err.Error()
		} else {
			out[store] = "ok"
		}
	}
	return out
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
