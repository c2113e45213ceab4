// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/poiesic/graphrag"
	"github.com/poiesic/graphrag/ai"
	"github.com/poiesic/graphrag/config"
	"github.com/poiesic/graphrag/core"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "graphrag",
		Usage: "Knowledge-graph-backed retrieval over your documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "insert",
				Usage:     "Ingest documents into the knowledge graph",
				ArgsUsage: "FILE [FILE...] (reads stdin when no files are given)",
				Action:    insertCommand,
				Flags: append(databaseFlags(),
					&cli.BoolFlag{
						Name:  "no-cache",
						Usage: "Disable the LLM response cache",
					},
				),
			},
			{
				Name:      "query",
				Usage:     "Retrieve ranked context for a query",
				ArgsUsage: "QUERY",
				Action:    queryCommand,
				Flags: append(databaseFlags(),
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Number of vector matches to request",
						Value: 60,
					},
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "Minimum cosine similarity for matches",
						Value: 0.2,
					},
				),
			},
			{
				Name:      "status",
				Usage:     "Show document processing status",
				ArgsUsage: "[DOC-ID]",
				Action:    statusCommand,
				Flags: append(databaseFlags(),
					&cli.StringFlag{
						Name:  "state",
						Usage: "List documents in a state (pending, processing, processed, failed)",
						Value: "failed",
					},
				),
			},
			{
				Name:      "reprocess",
				Usage:     "Requeue a processed or failed document",
				ArgsUsage: "DOC-ID",
				Action:    reprocessCommand,
				Flags:     databaseFlags(),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

func databaseFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to the database directory",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "host",
			Usage: "OpenAI-compatible service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "llm-model",
			Usage: "Chat model for extraction and summarization",
			Value: "qwen2.5:7b",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
		&cli.IntFlag{
			Name:  "chunk-size",
			Usage: "Maximum tokens per chunk",
			Value: 1200,
		},
		&cli.IntFlag{
			Name:  "chunk-overlap",
			Usage: "Tokens shared between consecutive chunks",
			Value: 100,
		},
		&cli.IntFlag{
			Name:  "max-async",
			Usage: "Maximum concurrent LLM calls",
			Value: 4,
		},
		&cli.IntFlag{
			Name:  "max-parallel",
			Usage: "Maximum concurrently processed documents",
			Value: 2,
		},
	}
}

func openDatabase(c *cli.Context) (*graphrag.Database, error) {
	cfgOpts := []config.Option{
		config.WithChunking(c.Int("chunk-size"), c.Int("chunk-overlap")),
		config.WithMaxAsync(c.Int("max-async")),
		config.WithMaxParallelInsert(c.Int("max-parallel")),
	}
	if c.Bool("no-cache") {
		cfgOpts = append(cfgOpts, config.WithLLMCache(false), config.WithExtractCache(false))
	}
	if c.IsSet("top-k") {
		cfgOpts = append(cfgOpts, config.WithTopK(c.Int("top-k")))
	}
	if c.IsSet("threshold") {
		cfgOpts = append(cfgOpts, config.WithCosineThreshold(float32(c.Float64("threshold"))))
	}

	aiConfig := ai.NewConfig(
		ai.WithHost(c.String("host")),
		ai.WithLLMModel(c.String("llm-model")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
	)

	db, err := graphrag.NewDatabase(c.String("db"),
		graphrag.WithConfig(config.New(cfgOpts...)),
		graphrag.WithAIConfig(aiConfig),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func insertCommand(c *cli.Context) error {
	ctx := context.Background()

	var contents []string
	if c.Args().Len() == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		contents = append(contents, string(data))
	} else {
		for _, path := range c.Args().Slice() {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			contents = append(contents, string(data))
		}
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	ids, err := db.InsertAndWait(ctx, contents...)
	if err != nil {
		return fmt.Errorf("insert failed: %w", err)
	}

	for _, id := range ids {
		doc, err := db.Status(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to read status: %w", err)
		}
		fmt.Printf("%016x  %-10s  chunks=%d", uint64(id), doc.Status, doc.ChunkCount)
		if doc.Error != "" {
			fmt.Printf("  error=%s", doc.Error)
		}
		fmt.Println()
	}
	return nil
}

func queryCommand(c *cli.Context) error {
	ctx := context.Background()

	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("query text is required")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := db.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if len(result.Entities) > 0 {
		fmt.Println("Entities:")
		for _, e := range result.Entities {
			fmt.Printf("  [%.3f] %s (%s): %s\n", e.Score, e.Name, e.Type, e.Description)
		}
	}
	if len(result.Relations) > 0 {
		fmt.Println("Relations:")
		for _, r := range result.Relations {
			fmt.Printf("  [%.3f] %s -> %s: %s\n", r.Score, r.Source, r.Target, r.Description)
		}
	}
	if len(result.Chunks) > 0 {
		fmt.Println("Chunks:")
		for _, ch := range result.Chunks {
			fmt.Printf("  [%.3f] doc %016x #%d: %s\n", ch.Score, uint64(ch.DocId), ch.Ordinal, ch.Content)
		}
	}
	if len(result.Entities)+len(result.Relations)+len(result.Chunks) == 0 {
		fmt.Println("No matches.")
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	if c.Args().Len() > 0 {
		id, err := parseDocID(c.Args().First())
		if err != nil {
			return err
		}
		doc, err := db.Status(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to read status: %w", err)
		}
		printDocument(doc)
		return nil
	}

	status, err := parseStatus(c.String("state"))
	if err != nil {
		return err
	}
	docs, err := db.ListByStatus(ctx, status)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	if len(docs) == 0 {
		fmt.Printf("No %s documents.\n", status)
		return nil
	}
	for _, doc := range docs {
		printDocument(doc)
	}
	return nil
}

func reprocessCommand(c *cli.Context) error {
	ctx := context.Background()

	if c.Args().Len() != 1 {
		return fmt.Errorf("exactly one document ID is required")
	}
	id, err := parseDocID(c.Args().First())
	if err != nil {
		return err
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Reprocess(ctx, id); err != nil {
		return fmt.Errorf("reprocess failed: %w", err)
	}

	// Close drains the pipeline, so the document is done by the time we return
	fmt.Printf("reprocessing %016x\n", uint64(id))
	return nil
}

func printDocument(doc *core.Document) {
	fmt.Printf("%016x  %-10s  chunks=%-4d  %s", uint64(doc.Id), doc.Status, doc.ChunkCount, doc.UpdatedAt.Format("2006-01-02 15:04:05"))
	if doc.Error != "" {
		fmt.Printf("  error=%s", doc.Error)
	}
	if doc.Summary != "" {
		fmt.Printf("\n    %s", doc.Summary)
	}
	fmt.Println()
}

func parseDocID(arg string) (core.ID, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(arg), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid document ID %q: expected hex", arg)
	}
	return core.ID(id), nil
}

func parseStatus(name string) (core.DocStatus, error) {
	switch strings.ToLower(name) {
	case "pending":
		return core.DocStatusPending, nil
	case "processing":
		return core.DocStatusProcessing, nil
	case "processed":
		return core.DocStatusProcessed, nil
	case "failed":
		return core.DocStatusFailed, nil
	default:
		return 0, fmt.Errorf("invalid state %q: must be one of pending, processing, processed, failed", name)
	}
}
