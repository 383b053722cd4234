// Package curation runs the LLM pipelines over a deck: pairwise duplicate
// classification, per-card quality grading, and rewrite generation. All
// provider traffic goes through fixed-size windows of concurrent requests,
// cache-checked first, so an interrupted run resumes where it left off.
package curation

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/mochi/internal/cache"
	"github.com/kalambet/mochi/internal/provider"
)

// DefaultWindow is the number of provider requests in flight at once.
const DefaultWindow = 10

// Runner executes keyed provider requests in strictly sequential windows.
type Runner struct {
	store      *cache.Store
	chat       provider.Chatter
	embed      provider.Embedder
	chatModel  string
	embedModel string
	window     int

	// Progress, when set, is called after each completed window with the
	// number of requests finished so far and the total to issue.
	Progress func(done, total int)
}

// Options configures a Runner. Zero Window means DefaultWindow.
type Options struct {
	ChatModel  string
	EmbedModel string
	Window     int
}

func NewRunner(store *cache.Store, chat provider.Chatter, embed provider.Embedder, opts Options) *Runner {
	window := opts.Window
	if window <= 0 {
		window = DefaultWindow
	}
	return &Runner{
		store:      store,
		chat:       chat,
		embed:      embed,
		chatModel:  opts.ChatModel,
		embedModel: opts.EmbedModel,
		window:     window,
	}
}

// runWindows calls fn for every index in [0, n). Requests within a window
// run concurrently; window N+1 is not issued until window N fully
// completed. The cache is flushed between windows so progress survives an
// interrupt.
func (r *Runner) runWindows(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	for start := 0; start < n; start += r.window {
		end := min(start+r.window, n)

		g, gCtx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error { return fn(gCtx, i) })
		}
		if err := g.Wait(); err != nil {
			return err
		}

		r.store.Flush()
		if r.Progress != nil {
			r.Progress(end, n)
		}
	}
	return nil
}

// preview truncates s for use in diagnostic messages.
func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
