// Command app runs one conversation turn against the tool-routing agent.
//
// Examples:
//
//	export OPENAI_API_KEY=...
//	go run ./cmd/app -message "What's the weather in Lagos?"
//
//	export ANTHROPIC_API_KEY=...
//	go run ./cmd/app -provider anthropic -model claude-sonnet-4-20250514 -message "Define serendipity"
//
//	go run ./cmd/app -provider ollama -model llama3.2 -message "2 + 2?"
//
// Session transcripts default to process memory; -store postgres or
// -store mongo keeps them across runs.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/turnpike-ai/turnpike"
	"github.com/turnpike-ai/turnpike/src/oracle"
	"github.com/turnpike-ai/turnpike/src/oracle/textmodel"
	"github.com/turnpike-ai/turnpike/src/retrieval"
	"github.com/turnpike-ai/turnpike/src/session"
	"github.com/turnpike-ai/turnpike/src/tools"
)

var (
	flagProvider = flag.String("provider", "openai", "LLM provider: openai|anthropic|gemini|ollama")
	flagModel    = flag.String("model", "", "Model ID for the selected provider (empty uses the provider default)")
	flagSession  = flag.String("session", "default", "Session ID for conversation continuity")
	flagMessage  = flag.String("message", "", "User message (ignored if -stdin is set)")
	flagStdin    = flag.Bool("stdin", false, "Read user message from STDIN")
	flagJSON     = flag.Bool("json", false, "Print JSON {response, provider, model, session}")
	flagTimeout  = flag.Duration("timeout", 90*time.Second, "Overall request timeout")
	flagMaxSteps = flag.Int("max-steps", 10, "Oracle round-trip budget per turn")

	flagStore    = flag.String("store", "memory", "Session store: memory|postgres|mongo")
	flagPostgres = flag.String("postgres-url", "", "Postgres connection string (with -store postgres; falls back to DATABASE_URL)")
	flagMongoURI = flag.String("mongo-uri", "mongodb://localhost:27017", "MongoDB URI (with -store mongo)")
	flagMongoDB  = flag.String("mongo-db", "turnpike", "MongoDB database name")

	qdrantURL        = flag.String("qdrant-url", "", "Qdrant base URL; empty keeps the doc index in memory")
	qdrantCollection = flag.String("qdrant-collection", "turnpike_docs", "Qdrant collection name")
)

func main() {
	_ = godotenv.Load()
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *flagTimeout)
	defer cancel()

	msg, err := getMessage(*flagMessage, *flagStdin, os.Stdin)
	if err != nil {
		fail(err)
	}
	if strings.TrimSpace(msg) == "" {
		fail(errors.New("no message provided"))
	}

	store, cleanup, err := buildStore(ctx)
	if err != nil {
		fail(err)
	}
	defer cleanup()

	decider, oracleClose, err := buildOracle(ctx)
	if err != nil {
		fail(err)
	}
	defer oracleClose()

	searcher, err := buildSearcher(ctx)
	if err != nil {
		fail(err)
	}

	agent, err := turnpike.New(turnpike.Options{
		Oracle:   decider,
		Store:    store,
		MaxSteps: *flagMaxSteps,
		Logger:   slog.New(slog.NewTextHandler(os.Stderr, nil)),
		Tools: []turnpike.Tool{
			&tools.WeatherTool{},
			&tools.DictionaryTool{},
			tools.NewWebSearchTool(nil),
			tools.NewDocSearchTool(searcher, 3),
			&tools.CalculatorTool{},
			&tools.TimeTool{},
			&tools.EchoTool{},
		},
	})
	if err != nil {
		fail(fmt.Errorf("build agent: %w", err))
	}

	out, err := agent.Send(ctx, *flagSession, msg)
	if err != nil {
		fail(err)
	}

	if *flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{
			"response": out,
			"provider": *flagProvider,
			"model":    *flagModel,
			"session":  *flagSession,
		})
		return
	}
	fmt.Println(out)
}

func buildOracle(ctx context.Context) (oracle.Oracle, func(), error) {
	noop := func() {}
	switch strings.ToLower(*flagProvider) {
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, noop, errors.New("OPENAI_API_KEY is not set")
		}
		return oracle.NewOpenAIOracle(key, *flagModel), noop, nil
	case "anthropic":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, noop, errors.New("ANTHROPIC_API_KEY is not set")
		}
		return oracle.NewAnthropicOracle(key, *flagModel), noop, nil
	case "gemini":
		key := os.Getenv("GOOGLE_API_KEY")
		if key == "" {
			key = os.Getenv("GEMINI_API_KEY")
		}
		if key == "" {
			return nil, noop, errors.New("GOOGLE_API_KEY is not set")
		}
		g, err := oracle.NewGeminiOracle(ctx, key, *flagModel)
		if err != nil {
			return nil, noop, fmt.Errorf("gemini oracle: %w", err)
		}
		return g, func() { _ = g.Close() }, nil
	case "ollama":
		model, err := textmodel.NewOllamaModel(*flagModel)
		if err != nil {
			return nil, noop, fmt.Errorf("ollama model: %w", err)
		}
		return oracle.NewPromptOracle(model), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown provider %q", *flagProvider)
	}
}

func buildStore(ctx context.Context) (session.Store, func(), error) {
	noop := func() {}
	switch strings.ToLower(*flagStore) {
	case "memory":
		return session.NewMemoryStore(session.MemoryOptions{}), noop, nil
	case "postgres":
		connStr := *flagPostgres
		if connStr == "" {
			connStr = os.Getenv("DATABASE_URL")
		}
		if connStr == "" {
			return nil, noop, errors.New("postgres store needs -postgres-url or DATABASE_URL")
		}
		st, err := session.NewPostgresStore(ctx, connStr)
		if err != nil {
			return nil, noop, fmt.Errorf("postgres store: %w", err)
		}
		if err := st.CreateSchema(ctx); err != nil {
			st.Close()
			return nil, noop, fmt.Errorf("postgres schema: %w", err)
		}
		return st, func() { st.Close() }, nil
	case "mongo":
		st, err := session.NewMongoStore(ctx, *flagMongoURI, *flagMongoDB, "sessions")
		if err != nil {
			return nil, noop, fmt.Errorf("mongo store: %w", err)
		}
		return st, func() { _ = st.Close(context.Background()) }, nil
	default:
		return nil, noop, fmt.Errorf("unknown store %q", *flagStore)
	}
}

// buildSearcher indexes the bundled documentation corpus, into Qdrant when a
// URL is configured and into process memory otherwise.
func buildSearcher(ctx context.Context) (retrieval.Searcher, error) {
	embedder := retrieval.AutoEmbedder()
	docs := retrieval.PythonDocs()

	if *qdrantURL != "" {
		qi := retrieval.NewQdrantIndex(*qdrantURL, *qdrantCollection, os.Getenv("QDRANT_API_KEY"), embedder)
		sample, err := embedder.Embed(ctx, "dimension sample")
		if err != nil {
			return nil, fmt.Errorf("sample embedding: %w", err)
		}
		if err := qi.CreateCollection(ctx, len(sample)); err != nil {
			return nil, fmt.Errorf("create collection: %w", err)
		}
		if err := qi.Add(ctx, docs...); err != nil {
			return nil, fmt.Errorf("index corpus: %w", err)
		}
		return qi, nil
	}

	idx := retrieval.NewMemoryIndex(embedder)
	if err := idx.Add(ctx, docs...); err != nil {
		return nil, fmt.Errorf("index corpus: %w", err)
	}
	return idx, nil
}

func getMessage(message string, useStdin bool, r io.Reader) (string, error) {
	if !useStdin {
		return message, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
