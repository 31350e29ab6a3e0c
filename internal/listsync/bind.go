package listsync

import "myday/internal/query"

// Bind keeps cache synced to state: every new live query reaches SetQuery,
// starting with the current one. The returned func stops the binding.
func Bind[Q comparable, T any](cache *Cache[Q, T], state *query.State[Q]) (unbind func()) {
	cancel := state.Subscribe(cache.SetQuery)
	cache.SetQuery(state.Current())
	return cancel
}
