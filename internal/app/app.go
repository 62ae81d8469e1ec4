// Package app wires configuration, storage, inference, and the assistant
// session into one runnable application.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorekeep/lorekeep/internal/assistant"
	"github.com/lorekeep/lorekeep/internal/blob"
	"github.com/lorekeep/lorekeep/internal/config"
	"github.com/lorekeep/lorekeep/internal/inference"
	"github.com/lorekeep/lorekeep/internal/knowledgectx"
	"github.com/lorekeep/lorekeep/internal/log"
	"github.com/lorekeep/lorekeep/internal/store"
	"github.com/lorekeep/lorekeep/internal/vector"
)

// App is the assembled application. Call Close to release resources.
type App struct {
	Config   *config.Config
	Logger   log.Logger
	Pool     *pgxpool.Pool
	Genkit   *genkit.Genkit
	Embedder ai.Embedder

	Store     *store.Store
	Blob      *blob.Store
	Vector    *vector.Index
	Gateway   *inference.Gateway
	Knowledge *knowledgectx.Loader
	Session   *assistant.Session
}

// Close releases the database pool. Safe to call on a partially
// initialized App.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}
