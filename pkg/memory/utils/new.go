// Package memoryutils wires a memory.Service from configuration, resolving
// providers for the session store, vector store, completion, and embedding
// collaborators.
package memoryutils

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/spoolhq/spool/pkg/dotdir"
	embeddingutils "github.com/spoolhq/spool/pkg/embeddings/utils"
	llmutils "github.com/spoolhq/spool/pkg/llm/utils"
	"github.com/spoolhq/spool/pkg/memory"
	"github.com/spoolhq/spool/pkg/memory/sqlitestore"
	vectorutils "github.com/spoolhq/spool/pkg/vector/utils"
)

type NewServiceOpts struct {
	// ConfigDir overrides .spool/ directory resolution. Relative database
	// paths are placed under the resolved directory.
	ConfigDir string

	SessionsPath string

	VectorProvider   string
	VectorTarget     string
	VectorCollection string
	VectorAPIKey     string

	LLMProvider string
	LLMTarget   string
	LLMModel    string
	LLMAPIKey   string

	EmbeddingProvider string
	EmbeddingTarget   string
	EmbeddingModel    string
	EmbeddingAPIKey   string
	Dimensions        uint

	ChunkThreshold int
	MinSimilarity  float64

	Logger *zap.Logger
}

// NewService builds the memory engine and its collaborators from options.
func NewService(ctx context.Context, o *NewServiceOpts) (*memory.Service, error) {
	sessionsPath, err := resolvePath(o.ConfigDir, o.SessionsPath)
	if err != nil {
		return nil, fmt.Errorf("resolving sessions path: %w", err)
	}

	store, err := sqlitestore.NewStore(sessionsPath, o.Logger)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	vectorTarget := o.VectorTarget
	if o.VectorProvider == "sqlite" {
		vectorTarget, err = resolvePath(o.ConfigDir, o.VectorTarget)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("resolving vector store path: %w", err)
		}
	}

	driver, err := vectorutils.NewVectorDriver(ctx, &vectorutils.NewVectorDriverOpts{
		ProviderType: o.VectorProvider,
		TargetURL:    vectorTarget,
		Collection:   o.VectorCollection,
		APIKey:       o.VectorAPIKey,
		Dimensions:   o.Dimensions,
		Logger:       o.Logger,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating vector driver: %w", err)
	}

	completer, err := llmutils.NewCompleter(&llmutils.NewCompleterOpts{
		ProviderType: o.LLMProvider,
		TargetURL:    o.LLMTarget,
		Model:        o.LLMModel,
		APIKey:       o.LLMAPIKey,
	})
	if err != nil {
		store.Close()
		driver.Close()
		return nil, fmt.Errorf("creating completer: %w", err)
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: o.EmbeddingProvider,
		TargetURL:    o.EmbeddingTarget,
		Model:        o.EmbeddingModel,
		APIKey:       o.EmbeddingAPIKey,
	})
	if err != nil {
		store.Close()
		driver.Close()
		completer.Close()
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return memory.NewService(memory.ServiceConfig{
		Store:          store,
		Vector:         driver,
		Completer:      completer,
		Embedder:       embedder,
		ChunkThreshold: o.ChunkThreshold,
		MinSimilarity:  o.MinSimilarity,
	}, o.Logger)
}

// resolvePath places relative database paths under the .spool/ directory.
// Absolute paths and ":memory:" pass through untouched.
func resolvePath(configDir, path string) (string, error) {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path, nil
	}

	target, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return "", err
	}
	if target == "" {
		return path, nil
	}

	return filepath.Join(target, path), nil
}
