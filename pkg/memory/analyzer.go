package memory

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/spoolhq/spool/pkg/llm"
)

// Analyzer classifies the pending buffer via the completion provider. Any
// upstream failure or unparseable output degrades to a deterministic rule so
// a bad model response can never lose a message.
type Analyzer struct {
	completer llm.Completer
	threshold int
	logger    *zap.Logger
}

// NewAnalyzer creates an analyzer cutting at the given buffer threshold.
func NewAnalyzer(completer llm.Completer, threshold int, logger *zap.Logger) *Analyzer {
	if threshold <= 0 {
		threshold = DefaultChunkThreshold
	}

	return &Analyzer{
		completer: completer,
		threshold: threshold,
		logger:    logger,
	}
}

// Analyze classifies the pending messages. It never returns an error; the
// deterministic fallback covers completion failures.
func (a *Analyzer) Analyze(ctx context.Context, messages []llm.Message, genre string, knownCharacters []string) *Analysis {
	prompt := analysisPrompt(llm.Transcript(messages), genre, knownCharacters)

	raw, err := a.completer.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{llm.NewMessage("user", prompt)},
		Temperature: analysisTemperature,
		MaxTokens:   analysisMaxTokens,
	})
	if err != nil {
		a.logger.Warn("analysis completion failed, using fallback", zap.Error(err))
		return a.fallback(len(messages))
	}

	analysis, err := parseAnalysis(raw)
	if err != nil {
		a.logger.Warn("analysis output unparseable, using fallback",
			zap.Error(err),
			zap.String("raw", raw),
		)
		return a.fallback(len(messages))
	}

	return analysis
}

// fallback is the deterministic rule: cut purely on buffer length, with a
// neutral classification.
func (a *Analyzer) fallback(bufferLen int) *Analysis {
	return &Analysis{
		ShouldCreateChunk: bufferLen >= a.threshold,
		Importance:        fallbackImportance,
		PlotPoint:         "development",
		Emotion:           "neutral",
		NewCharacters:     []string{},
		Keywords:          []string{},
	}
}

// parseAnalysis decodes the model's JSON object, tolerating markdown code
// fences, and clamps importance into [0,1].
func parseAnalysis(raw string) (*Analysis, error) {
	cleaned := stripCodeFences(raw)

	var analysis Analysis
	if err := json.Unmarshal([]byte(cleaned), &analysis); err != nil {
		return nil, err
	}

	if analysis.Importance < 0 {
		analysis.Importance = 0
	}
	if analysis.Importance > 1 {
		analysis.Importance = 1
	}
	if analysis.NewCharacters == nil {
		analysis.NewCharacters = []string{}
	}
	if analysis.Keywords == nil {
		analysis.Keywords = []string{}
	}

	return &analysis, nil
}

// stripCodeFences removes a surrounding markdown code fence, with or without
// a language tag, leaving the inner payload.
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// Drop the fence line itself, which may carry a language tag.
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
