// Package ratelimit implements multi-window admission control for accounts.
//
// Each account carries three independent fixed windows (five minutes, one hour,
// one day). A window is reset lazily by the first request that arrives after it
// expired, so there is no background timer. The read-modify-write of an account's
// counters runs inside CounterStore.Update, which must serialize concurrent updates
// of the same account at the storage layer.
package ratelimit
