package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"sfetl/internal/etl"
	"sfetl/internal/service"
)

// Server exposes the configuration editing operations as MCP tools.
// Every tool call runs under one mutex: the agent is a single editor and
// no two edits ever interleave.
type Server struct {
	mcp     *server.MCPServer
	emitter service.EventEmitter
	log     zerolog.Logger

	svc    *service.ConfigService
	engine *etl.Engine

	mu    sync.Mutex
	sess  *etl.Session
	dirty bool // unsaved edits since the last load or save
}

// Deps holds everything the app layer passes to the MCP server.
type Deps struct {
	Service *service.ConfigService
	Engine  *etl.Engine // preview and dry runs; optional
	Emitter service.EventEmitter
	Log     zerolog.Logger
}

// New loads the stored configuration and registers all tools, resources
// and prompts.
func New(ctx context.Context, deps Deps) (*Server, error) {
	sess, err := deps.Service.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open configuration: %w", err)
	}
	emitter := deps.Emitter
	if emitter == nil {
		emitter = service.NopEmitter{}
	}
	engine := deps.Engine
	if engine == nil {
		engine = &etl.Engine{Loader: &etl.DryRunLoader{}}
	}
	s := &Server{
		emitter: emitter,
		log:     deps.Log,
		svc:     deps.Service,
		engine:  engine,
		sess:    sess,
	}

	s.mcp = server.NewMCPServer(
		"sfetl-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerCatalogTools()
	s.registerMappingTools()
	s.registerTransformTools()
	s.registerLoadTools()
	s.registerConfigTools()
	s.registerResources()
	s.registerPrompts()

	return s, nil
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.log.Info().Msg("starting MCP stdio server")
	return server.ServeStdio(s.mcp)
}

// Adopt replaces the session with one loaded from the store, unless the
// current one carries unsaved edits. It reports whether sess was taken.
func (s *Server) Adopt(sess *etl.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirty {
		s.log.Warn().Msg("configuration changed on disk, keeping unsaved edits")
		return false
	}
	s.sess = sess
	return true
}

// ── Helpers ────────────────────────────────────────────────

// read runs fn against the session without marking it dirty.
func (s *Server) read(fn func(*etl.Session) (*mcp.CallToolResult, error)) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.sess)
}

// edit runs a mutating fn. Validation failures come back as tool errors
// the agent can correct; the session is unchanged in that case.
func (s *Server) edit(ctx context.Context, fn func(*etl.Session) (any, error)) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := fn(s.sess)
	if err != nil {
		return editError(err)
	}
	s.dirty = true
	s.emitter.Emit(ctx, "mcp:config-edited", nil)
	return jsonResult(v)
}

func editError(err error) (*mcp.CallToolResult, error) {
	if etl.IsValidation(err) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return nil, err
}

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

func boolPtr(v bool) *bool { return &v }
