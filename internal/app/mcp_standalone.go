package app

import (
	"context"
	"errors"

	"sfetl/internal/etl"
	mcpserver "sfetl/internal/mcp"
	"sfetl/internal/service"
)

// ServeMCP runs the MCP server on stdin/stdout until the client
// disconnects. When the document lives in a file, edits made on disk by
// another process are picked up between tool calls.
func (a *App) ServeMCP(ctx context.Context) error {
	srv, err := mcpserver.New(ctx, mcpserver.Deps{
		Service: a.Service,
		Engine:  a.Engine(),
		Emitter: a.emitter,
		Log:     a.Log,
	})
	if err != nil {
		return err
	}

	err = a.Service.Watch(ctx, func(sess *etl.Session) {
		if srv.Adopt(sess) {
			a.Log.Info().Msg("reloaded configuration for MCP session")
		}
	})
	if err != nil && !errors.Is(err, service.ErrNotWatchable) {
		a.Log.Warn().Err(err).Msg("configuration watch disabled")
	}
	defer a.Service.Stop()

	return srv.ServeStdio()
}
