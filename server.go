package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gamma-omg/doc-chat/generator"
	"github.com/gamma-omg/doc-chat/rag"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const previewLength = 1000

type sessionStore interface {
	Upload(ctx context.Context, sessionID string, path string) (string, *rag.Session, error)
	Get(sessionID string) (*rag.Session, error)
}

// generatorFactory creates a generator that authenticates with apiKey.
type generatorFactory func(ctx context.Context, apiKey string) (rag.Generator, error)

type chatTools struct {
	log          *slog.Logger
	sessions     sessionStore
	generator    rag.Generator
	newGenerator generatorFactory
	topK         int
}

func NewRagServer(tools *chatTools) *server.MCPServer {
	srv := server.NewMCPServer("docchat", "0.1.0", server.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool("upload_document",
		mcp.WithDescription("Extract, chunk and index a PDF, DOCX or TXT document so questions can be asked about it"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path of the document to upload"),
		),
		mcp.WithString("session",
			mcp.Description("Session to replace; a new session is created when empty"),
		),
	), tools.upload)

	srv.AddTool(mcp.NewTool("ask",
		mcp.WithDescription("Answer a question using the document uploaded to the session"),
		mcp.WithString("session",
			mcp.Required(),
			mcp.Description("Session returned by upload_document"),
		),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Question about the document"),
		),
		mcp.WithString("api_key",
			mcp.Description("API key for the generation model, overrides the configured key"),
		),
	), tools.ask)

	srv.AddTool(mcp.NewTool("retrieve",
		mcp.WithDescription("Return the document chunks most relevant to a query"),
		mcp.WithString("session",
			mcp.Required(),
			mcp.Description("Session returned by upload_document"),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query"),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Number of chunks to return"),
		),
	), tools.retrieve)

	srv.AddTool(mcp.NewTool("history",
		mcp.WithDescription("List the questions asked in a session and the answers given"),
		mcp.WithString("session",
			mcp.Required(),
			mcp.Description("Session returned by upload_document"),
		),
	), tools.history)

	return srv
}

func (t *chatTools) upload(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	id, s, err := t.sessions.Upload(ctx, request.GetString("session", ""), path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	raw, err := json.Marshal(struct {
		Session string `json:"session"`
		Chunks  int    `json:"chunks"`
		Preview string `json:"preview"`
	}{
		Session: id,
		Chunks:  len(s.Chunks()),
		Preview: rag.Preview(s.Text(), previewLength),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(string(raw)), nil
}

func (t *chatTools) ask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question := request.GetString("question", "")
	s, err := t.sessions.Get(request.GetString("session", ""))
	if err != nil || !s.Ready() || strings.TrimSpace(question) == "" {
		return mcp.NewToolResultError(rag.MissingInputWarning), nil
	}

	gen := t.generator
	if key := request.GetString("api_key", ""); key != "" {
		gen, err = t.newGenerator(ctx, key)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		defer generator.Close(gen)
	}

	ans, err := s.Ask(ctx, gen, question, t.topK)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	t.log.Info("question answered",
		slog.String("session", request.GetString("session", "")),
		slog.Int("k", t.topK),
		slog.Bool("failed", ans.Err != nil))

	return mcp.NewToolResultText(ans.Text), nil
}

func (t *chatTools) retrieve(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	id := request.GetString("session", "")
	s, err := t.sessions.Get(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	k := request.GetInt("top_k", t.topK)
	res, err := s.RetrieveChunks(ctx, q, k)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	t.log.Info("chunks retrieved",
		slog.String("session", id),
		slog.Int("k", k),
		slog.Int("results", len(res)))

	var response strings.Builder
	for _, r := range res {
		raw, err := json.Marshal(struct {
			Index    int     `json:"index"`
			Distance float32 `json:"distance"`
			Text     string  `json:"text"`
		}{
			Index:    r.Chunk.Index,
			Distance: r.Distance,
			Text:     r.Chunk.Text,
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		response.WriteString(fmt.Sprintf("%s\n", string(raw)))
	}

	return mcp.NewToolResultText(response.String()), nil
}

func (t *chatTools) history(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, err := t.sessions.Get(request.GetString("session", ""))
	if err != nil && !errors.Is(err, rag.ErrEmptyIndex) {
		return mcp.NewToolResultError(err.Error()), nil
	}

	h := s.History()
	if h == nil {
		h = []rag.Exchange{}
	}

	raw, err := json.Marshal(h)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(string(raw)), nil
}
