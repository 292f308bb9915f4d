package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gamma-omg/doc-chat/rag"
	"github.com/gamma-omg/doc-chat/readers"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var (
	watchDocs bool
	askAPIKey string
	askTopK   int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the document chat tools over MCP (SSE)",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var askCmd = &cobra.Command{
	Use:   "ask FILE QUESTION",
	Short: "Upload a document and answer one question about it",
	Args:  cobra.ExactArgs(2),
	RunE:  runAsk,
}

var chunksCmd = &cobra.Command{
	Use:   "chunks FILE",
	Short: "Show the extracted text preview and the chunks of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runChunks,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [PATH]",
	Short: "Write the default configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

func init() {
	serveCmd.Flags().BoolVar(&watchDocs, "watch", false, "re-index uploaded documents when they change on disk")
	askCmd.Flags().StringVar(&askAPIKey, "api-key", "", "API key for the generation model")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of chunks used as context (default from config)")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(serveCmd, askCmd, chunksCmd, configCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := readConfig(cfgPath)
	if err != nil {
		return err
	}

	logFile, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	logger := slog.New(slog.NewJSONHandler(logFile, nil))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	reg := NewSessionRegistry(logger, cfg.DocRoot, a.extractor, a.pipeline, time.Duration(cfg.MergeEventsMs)*time.Millisecond)
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		if err := reg.Close(closeCtx); err != nil {
			logger.Warn("failed to release sessions", slog.String("error", err.Error()))
		}
	}()

	if watchDocs {
		if err := reg.Watch(ctx); err != nil {
			return err
		}
	}

	srv := NewRagServer(&chatTools{
		log:       logger,
		sessions:  reg,
		generator: a.generator,
		newGenerator: func(ctx context.Context, apiKey string) (rag.Generator, error) {
			return createGenerator(ctx, cfg, apiKey)
		},
		topK: cfg.TopK,
	})

	sse := server.NewSSEServer(srv, server.WithBaseURL(fmt.Sprintf("http://%s", cfg.ServerAddr)))

	errCh := make(chan error, 1)
	go func() {
		errCh <- sse.Start(cfg.ServerAddr)
	}()

	logger.Info("server started", slog.String("addr", cfg.ServerAddr), slog.Bool("watch", watchDocs))
	fmt.Fprintf(cmd.ErrOrStderr(), "listening on http://%s/sse\n", cfg.ServerAddr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	return sse.Shutdown(shutdownCtx)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := readConfig(cfgPath)
	if err != nil {
		return err
	}
	if askAPIKey != "" {
		cfg.Generation.ApiKey = askAPIKey
	}

	k := cfg.TopK
	if askTopK > 0 {
		k = askTopK
	}

	logger := stderrLogger()
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	text, err := a.extractor.ReadFile(args[0])
	if err != nil {
		return err
	}

	s, err := a.pipeline.Index(ctx, text)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	ans, err := s.Ask(ctx, a.generator, args[1], k)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), rag.MissingInputWarning)
		return err
	}

	return printAnswer(cmd, args[1], ans)
}

func printAnswer(cmd *cobra.Command, question string, ans rag.Answer) error {
	fmt.Fprintf(cmd.OutOrStdout(), "You: %s\nAI: %s\n", question, ans.Text)

	if ans.Err != nil {
		// The error is already part of the printed answer.
		cmd.SilenceErrors = true
		return ans.Err
	}

	return nil
}

func runChunks(cmd *cobra.Command, args []string) error {
	cfg, err := readConfig(cfgPath)
	if err != nil {
		return err
	}

	text, err := readers.Default().ReadFile(args[0])
	if err != nil {
		return err
	}

	chunks, err := cfg.chunkifier().Chunkify(text)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n\n%d chunks (size %d, overlap %d)\n", rag.Preview(text, previewLength), len(chunks), cfg.ChunkSize, cfg.ChunkOverlap)
	for _, c := range chunks {
		fmt.Fprintf(out, "#%d @%d: %q\n", c.Index, c.Start, rag.Preview(c.Text, 60))
	}

	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := cfgPath
	if len(args) == 1 {
		path = args[0]
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := defaultConfig().Save(path); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}
