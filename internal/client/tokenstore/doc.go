// Package tokenstore persists the single bearer token of a client profile and
// tells every other instance sharing the same storage when it changes.
//
// A Store is one "tab": an instance with its own origin ID. Writes made
// through a Store are never reported back to that Store's own subscribers,
// only to other instances over the same storage, which is what the session
// manager relies on for cross-tab synchronization.
//
// Backends:
//   - Memory: in-process storage shared by tabs created from one SharedMemory.
//   - SQLite: a local database file; changes are detected by polling a
//     version counter.
//   - Redis: a shared key plus a pub/sub channel carrying change notices.
package tokenstore
