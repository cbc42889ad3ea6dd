package geminiservice

import (
	"context"

	"github.com/rs/zerolog"
)

const modelsCacheKey = "models"

// Candidates returns the ordered list of model ids to try for one invocation:
// the primary model, then whatever the capability listing reported (or the
// hardcoded fallback list when listing fails), de-duplicated and capped.
// It never fails and never returns an empty list.
func (c *Client) Candidates(ctx context.Context) []string {
	listed, err := c.listModelsCached(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Capability listing failed, using default model list")
		listed = c.defaultModels()
	}

	out := make([]string, 0, c.maxCandidates)
	seen := make(map[string]bool)
	add := func(id string) {
		if id == "" || seen[id] || len(out) >= c.maxCandidates {
			return
		}
		seen[id] = true
		out = append(out, id)
	}

	add(c.primaryModel)
	for _, id := range listed {
		add(id)
	}
	// A listing that only repeats the primary model still leaves room for the floor.
	if len(out) < 2 {
		for _, id := range c.defaultModels() {
			add(id)
		}
	}
	return out
}

func (c *Client) defaultModels() []string {
	if len(c.fallbackModels) > 0 {
		return c.fallbackModels
	}
	return []string{"gemini-2.0-flash", "gemini-1.5-flash", "gemini-1.5-pro"}
}

// listModelsCached serves a recent successful listing from the cache, and
// collapses concurrent listings into a single upstream call. Failures are not cached.
// The shared call ignores the first caller's cancellation. ListModels still
// bounds it with the client timeout.
func (c *Client) listModelsCached(ctx context.Context) ([]string, error) {
	if c.models != nil {
		if ids, ok := c.models.Get(modelsCacheKey); ok {
			return append([]string(nil), ids...), nil
		}
	}

	v, err, _ := c.group.Do(modelsCacheKey, func() (interface{}, error) {
		ids, err := c.ListModels(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if c.models != nil {
			c.models.Add(modelsCacheKey, ids)
		}
		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]string(nil), v.([]string)...), nil
}
