// Package pagination coordinates cursor-paginated API requests.
//
// A Coordinator issues the first page of a request through a promise.Tracker,
// detects whether the response carries a continuation cursor, and exposes a
// LoadMore action that fetches the next page with the cursor injected into
// the call options. Each new page's array-valued field is appended to the
// accumulated result; every other field reflects the latest page.
//
// Example usage:
//
//	coord, err := pagination.New(pagination.DefaultConfig())
//	coord.Open(apiClient, "publicRooms", pagination.Options{"limit": 20})
//	state, err := coord.Wait(ctx)
//	for state.LoadMore != nil {
//		if err := coord.LoadMore(); err != nil {
//			break
//		}
//		state = coord.State()
//	}
//
// The coordinator:
//   - Starts a new epoch whenever the client identity, API or options change
//   - Drops accumulated state and cancels the previous epoch on change or Close
//   - Discards responses that arrive after their epoch was cancelled
//   - Never runs two page loads of one epoch at the same time
//   - Never overwrites a cursor the caller set explicitly in the options
package pagination
