// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/rebib/pkg/types"
)

// ResolveFunc resolves one entry. It must not share mutable state with
// other invocations.
type ResolveFunc func(ctx context.Context, entry types.Entry) types.Outcome

// DispatchAll resolves every entry and returns one outcome per entry in
// input order. With workers > 1 at most that many resolutions run at
// once; otherwise entries are resolved sequentially.
func DispatchAll(ctx context.Context, entries []types.Entry, workers int, fn ResolveFunc) []types.Outcome {
	outcomes := make([]types.Outcome, len(entries))
	if workers <= 1 {
		for i, e := range entries {
			outcomes[i] = fn(ctx, e)
		}
		return outcomes
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			outcomes[i] = fn(ctx, e)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
