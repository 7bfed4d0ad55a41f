// Package app wires configuration, Genkit, the vector memory backend,
// and the HTTP surface into one runnable application.
package app

import (
	"context"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/Hemant277123/NexusAI/internal/agent"
	"github.com/Hemant277123/NexusAI/internal/api"
	"github.com/Hemant277123/NexusAI/internal/chats"
	"github.com/Hemant277123/NexusAI/internal/config"
	"github.com/Hemant277123/NexusAI/internal/log"
	"github.com/Hemant277123/NexusAI/internal/memory"
	"github.com/Hemant277123/NexusAI/internal/search"
	"github.com/Hemant277123/NexusAI/internal/transcript"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder

	Memory      *memory.Retriever
	Transcripts *transcript.Store
	Chats       *chats.Registry
	Agents      *agent.Registry
	Search      *search.Client // nil when no search API key is configured

	Server *api.Server

	// Lifecycle management
	wg          *sync.WaitGroup
	bgCancel    context.CancelFunc
	otelCleanup func()
}

// Close gracefully shuts down all resources. Pending background memory
// writes are drained before the vector backend closes.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	if a.wg != nil {
		a.wg.Wait()
	}
	if a.bgCancel != nil {
		a.bgCancel()
	}
	if a.Memory != nil {
		a.Memory.Close()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
