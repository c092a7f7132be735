// Package engine wires the memory service for CLI commands from the resolved
// configuration chain (flags > env > config.toml > defaults).
package engine

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spoolhq/spool/pkg/config"
	"github.com/spoolhq/spool/pkg/logger"
	"github.com/spoolhq/spool/pkg/memory"
	memoryutils "github.com/spoolhq/spool/pkg/memory/utils"
)

// BuildService constructs the memory service and a logger for a CLI command.
// The caller owns the returned service and must Close it.
func BuildService(ctx context.Context, cmd *cobra.Command) (*memory.Service, *zap.Logger, error) {
	debug, _ := cmd.Flags().GetBool("debug")
	configDir, _ := cmd.Flags().GetString("config-dir")

	log := logger.NewLogger(debug)

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, nil, err
	}

	svc, err := memoryutils.NewService(ctx, &memoryutils.NewServiceOpts{
		ConfigDir:         configDir,
		SessionsPath:      v.GetString("storage.sessions_path"),
		VectorProvider:    v.GetString("vector_store.provider"),
		VectorTarget:      v.GetString("vector_store.target"),
		VectorCollection:  v.GetString("vector_store.collection"),
		VectorAPIKey:      v.GetString("vector_store.api_key"),
		LLMProvider:       v.GetString("llm.provider"),
		LLMTarget:         v.GetString("llm.target"),
		LLMModel:          v.GetString("llm.model"),
		LLMAPIKey:         v.GetString("llm.api_key"),
		EmbeddingProvider: v.GetString("embedding.provider"),
		EmbeddingTarget:   v.GetString("embedding.target"),
		EmbeddingModel:    v.GetString("embedding.model"),
		EmbeddingAPIKey:   v.GetString("embedding.api_key"),
		Dimensions:        v.GetUint("embedding.dimensions"),
		ChunkThreshold:    v.GetInt("memory.chunk_threshold"),
		MinSimilarity:     v.GetFloat64("memory.min_similarity"),
		Logger:            log,
	})
	if err != nil {
		return nil, nil, err
	}

	return svc, log, nil
}

// TopK returns the configured retrieval top-k for a command.
func TopK(cmd *cobra.Command) (int, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return 0, err
	}

	return v.GetInt("memory.retrieval_top_k"), nil
}
