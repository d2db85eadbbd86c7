//go:build !darwin

package keychain

import "log/slog"

// NewSystemStore returns a MemoryStore on non-darwin platforms.
// The macOS Keychain is not available outside of macOS; entries are
// held in memory only and will not persist across restarts. Use the
// sqlite backend for a persistent store on these platforms.
func NewSystemStore() *MemoryStore {
	slog.Warn("system keychain unavailable on this platform, using in-memory store")
	return NewMemoryStore()
}
