package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/gamma-omg/doc-chat/rag"
	"github.com/gamma-omg/doc-chat/readers"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	reply   string
	err     error
	prompts []string
	closed  bool
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.reply, g.err
}

func (g *fakeGenerator) Close() error {
	g.closed = true
	return nil
}

func newTestTools(gen rag.Generator) *chatTools {
	return &chatTools{
		log:       discardLogger(),
		sessions:  newTestRegistry(),
		generator: gen,
		newGenerator: func(ctx context.Context, apiKey string) (rag.Generator, error) {
			return nil, errors.New("unexpected api key")
		},
		topK: rag.DefaultTopK,
	}
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args

	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)

	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)

	return text.Text, res.IsError
}

func uploadDocument(t *testing.T, tools *chatTools, content string) string {
	path := createFile(t, t.TempDir(), "doc.txt", content)

	out, isErr := callTool(t, tools.upload, map[string]any{"path": path})
	require.False(t, isErr, out)

	var res struct {
		Session string `json:"session"`
		Chunks  int    `json:"chunks"`
		Preview string `json:"preview"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.NotEmpty(t, res.Session)
	assert.Positive(t, res.Chunks)
	assert.Equal(t, content, res.Preview)

	return res.Session
}

func Test_Upload_Tool_Preview(t *testing.T) {
	tools := newTestTools(&fakeGenerator{})
	long := strings.Repeat("b", 1200)
	path := createFile(t, t.TempDir(), "long.txt", long)

	out, isErr := callTool(t, tools.upload, map[string]any{"path": path})
	require.False(t, isErr, out)

	var res struct {
		Preview string `json:"preview"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, strings.Repeat("b", 1000)+"...", res.Preview)
}

func Test_Upload_Tool_Unsupported(t *testing.T) {
	tools := newTestTools(&fakeGenerator{})
	path := createFile(t, t.TempDir(), "doc.odt", "hello")

	out, isErr := callTool(t, tools.upload, map[string]any{"path": path})
	assert.True(t, isErr)
	assert.Contains(t, out, "unsupported")
}

func Test_Ask_Tool(t *testing.T) {
	gen := &fakeGenerator{reply: "Paris."}
	tools := newTestTools(gen)
	id := uploadDocument(t, tools, "The capital of France is Paris.")

	out, isErr := callTool(t, tools.ask, map[string]any{"session": id, "question": "What is the capital?"})
	require.False(t, isErr)
	assert.Equal(t, "Paris.", out)

	require.Len(t, gen.prompts, 1)
	assert.True(t, strings.HasPrefix(gen.prompts[0], "Answer the user's question using this context:\n"))
	assert.True(t, strings.HasSuffix(gen.prompts[0], "\n\nUser: What is the capital?\nAI:"))
	assert.False(t, gen.closed)

	out, isErr = callTool(t, tools.history, map[string]any{"session": id})
	require.False(t, isErr)
	assert.JSONEq(t, `[{"question":"What is the capital?","answer":"Paris."}]`, out)
}

func Test_Ask_Tool_MissingInput(t *testing.T) {
	gen := &fakeGenerator{reply: "unused"}
	tools := newTestTools(gen)
	id := uploadDocument(t, tools, "some document text")

	var cases = []struct {
		name string
		args map[string]any
	}{
		{name: "no_session", args: map[string]any{"question": "why?"}},
		{name: "unknown_session", args: map[string]any{"session": "nope", "question": "why?"}},
		{name: "blank_question", args: map[string]any{"session": id, "question": "  "}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out, isErr := callTool(t, tools.ask, c.args)
			assert.True(t, isErr)
			assert.Equal(t, rag.MissingInputWarning, out)
		})
	}

	assert.Empty(t, gen.prompts)
}

func Test_Ask_Tool_GenerationFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("quota exceeded")}
	tools := newTestTools(gen)
	id := uploadDocument(t, tools, "some document text")

	out, isErr := callTool(t, tools.ask, map[string]any{"session": id, "question": "what?"})
	assert.False(t, isErr)
	assert.Equal(t, "Error: quota exceeded", out)

	out, _ = callTool(t, tools.history, map[string]any{"session": id})
	assert.JSONEq(t, `[{"question":"what?","answer":"Error: quota exceeded"}]`, out)
}

func Test_Ask_Tool_APIKey(t *testing.T) {
	configured := &fakeGenerator{reply: "configured"}
	override := &fakeGenerator{reply: "override"}

	tools := newTestTools(configured)
	var gotKey string
	tools.newGenerator = func(ctx context.Context, apiKey string) (rag.Generator, error) {
		gotKey = apiKey
		return override, nil
	}
	id := uploadDocument(t, tools, "some document text")

	out, isErr := callTool(t, tools.ask, map[string]any{"session": id, "question": "what?", "api_key": "user-key"})
	require.False(t, isErr)
	assert.Equal(t, "override", out)
	assert.Equal(t, "user-key", gotKey)
	assert.True(t, override.closed)
	assert.Empty(t, configured.prompts)
}

func Test_Retrieve_Tool(t *testing.T) {
	tools := newTestTools(&fakeGenerator{})
	id := uploadDocument(t, tools, "alpha beta gamma delta epsilon zeta")

	out, isErr := callTool(t, tools.retrieve, map[string]any{"session": id, "query": "gamma", "top_k": float64(2)})
	require.False(t, isErr, out)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)

	var prev float32 = -1
	for _, l := range lines {
		var r struct {
			Index    int     `json:"index"`
			Distance float32 `json:"distance"`
			Text     string  `json:"text"`
		}
		require.NoError(t, json.Unmarshal([]byte(l), &r))
		assert.NotEmpty(t, r.Text)
		assert.GreaterOrEqual(t, r.Distance, prev)
		prev = r.Distance
	}
}

func Test_Retrieve_Tool_Logs(t *testing.T) {
	var buf bytes.Buffer
	tools := newTestTools(&fakeGenerator{})
	tools.log = slog.New(slog.NewJSONHandler(&buf, nil))
	id := uploadDocument(t, tools, "alpha beta gamma delta epsilon zeta")

	_, isErr := callTool(t, tools.retrieve, map[string]any{"session": id, "query": "gamma", "top_k": float64(2)})
	require.False(t, isErr)

	assert.Contains(t, buf.String(), `"msg":"chunks retrieved"`)
	assert.Contains(t, buf.String(), `"session":"`+id+`"`)
	assert.Contains(t, buf.String(), `"k":2`)
}

func Test_Upload_Tool_OutsideDocRoot(t *testing.T) {
	tools := newTestTools(&fakeGenerator{})
	tools.sessions = NewSessionRegistry(discardLogger(), t.TempDir(), readers.Default(), newTestPipeline(), time.Millisecond)
	path := createFile(t, t.TempDir(), "secret.txt", "private notes")

	out, isErr := callTool(t, tools.upload, map[string]any{"path": path})
	assert.True(t, isErr)
	assert.Contains(t, out, ErrOutsideRoot.Error())
	assert.NotContains(t, out, "private notes")
}

func Test_Retrieve_Tool_UnknownSession(t *testing.T) {
	tools := newTestTools(&fakeGenerator{})

	_, isErr := callTool(t, tools.retrieve, map[string]any{"session": "nope", "query": "gamma"})
	assert.True(t, isErr)
}

func Test_History_Tool_Unknown(t *testing.T) {
	tools := newTestTools(&fakeGenerator{})

	out, isErr := callTool(t, tools.history, map[string]any{"session": "nope"})
	assert.False(t, isErr)
	assert.Equal(t, "[]", out)
}

func Test_NewRagServer(t *testing.T) {
	srv := NewRagServer(newTestTools(&fakeGenerator{}))
	require.NotNil(t, srv)
}
