// Package session stores per-conversation state behind a pluggable Store
// (in-memory, Redis, SQLite) and a Manager that serializes access per
// session key, creates sessions lazily, and sweeps expired ones in the
// background.
package session
