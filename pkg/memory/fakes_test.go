package memory_test

import (
	"context"
	"strings"
	"sync"

	"github.com/spoolhq/spool/pkg/embeddings"
	"github.com/spoolhq/spool/pkg/llm"
	"github.com/spoolhq/spool/pkg/vector"
)

// fakeCompleter answers the three prompt shapes the engine sends, keyed by
// marker text in the prompt. A nil response map means every call fails.
type fakeCompleter struct {
	mu sync.Mutex

	analysisJSON string
	chunkSummary string
	plotSummary  string
	err          error

	calls []string
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prompt := ""
	if len(req.Messages) > 0 {
		prompt = req.Messages[len(req.Messages)-1].Content
	}

	if f.err != nil {
		return "", f.err
	}

	switch {
	case strings.Contains(prompt, "shouldCreateChunk"):
		f.calls = append(f.calls, "analysis")
		return f.analysisJSON, nil
	case strings.Contains(prompt, "at most 50 characters"):
		f.calls = append(f.calls, "chunk_summary")
		return f.chunkSummary, nil
	case strings.Contains(prompt, "at most 100 characters"):
		f.calls = append(f.calls, "plot_summary")
		return f.plotSummary, nil
	default:
		f.calls = append(f.calls, "unknown")
		return "", nil
	}
}

func (f *fakeCompleter) Close() error { return nil }

// fakeEmbedder returns a fixed unit vector, or fails when err is set.
type fakeEmbedder struct {
	mu        sync.Mutex
	embedding []float32
	err       error
	calls     int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]float32{}, f.embedding...), nil
}

func (f *fakeEmbedder) Close() error { return nil }

func (f *fakeEmbedder) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// flakyDriver wraps a real driver and fails Upsert on demand.
type flakyDriver struct {
	vector.Driver
	mu         sync.Mutex
	upsertErr  error
	upsertSeen int
}

func (d *flakyDriver) Upsert(ctx context.Context, chunk *vector.Chunk) error {
	d.mu.Lock()
	err := d.upsertErr
	d.upsertSeen++
	d.mu.Unlock()

	if err != nil {
		return err
	}
	return d.Driver.Upsert(ctx, chunk)
}

func (d *flakyDriver) setUpsertErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.upsertErr = err
}

var (
	_ llm.Completer       = (*fakeCompleter)(nil)
	_ embeddings.Embedder = (*fakeEmbedder)(nil)
	_ vector.Driver       = (*flakyDriver)(nil)
)
