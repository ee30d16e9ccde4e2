// Package cache provides persistent backends for
// [github.com/germanamz/huddle/pkg/modeladapter.CachedCompleter]: a SQLite
// file under the data directory (default) and Redis.
package cache
