package curation

import (
	"context"
	"fmt"

	"github.com/kalambet/mochi/internal/cache"
	"github.com/kalambet/mochi/internal/card"
	"github.com/kalambet/mochi/internal/provider"
)

// embedPurpose stands in for a prompt template in embedding cache keys.
const embedPurpose = "card-embedding"

// EmbedText is the canonical embedding input for a card.
func EmbedText(c card.Card) string {
	return c.Question + "\n" + c.Answer
}

// Embeddings returns one vector per text, in order, consulting the cache
// first and requesting only the misses in one provider batch.
func Embeddings(ctx context.Context, store *cache.Store, embedder provider.Embedder, model string, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		keys[i] = cache.Key(model, embedPurpose, text)
		if vec, ok := store.Embedding(keys[i]); ok {
			vectors[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missIdx) == 0 {
		return vectors, nil
	}

	fresh, err := embedder.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, fmt.Errorf("embedding %d texts: %w", len(missTexts), err)
	}
	for k, i := range missIdx {
		vectors[i] = fresh[k]
		store.PutEmbedding(keys[i], fresh[k])
	}
	store.Flush()

	return vectors, nil
}

// EmbedCards embeds every card through the cache.
func (r *Runner) EmbedCards(ctx context.Context, cards []card.Card) ([][]float32, error) {
	texts := make([]string, len(cards))
	for i, c := range cards {
		texts[i] = EmbedText(c)
	}
	return Embeddings(ctx, r.store, r.embed, r.embedModel, texts)
}
