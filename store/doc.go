// Package store defines the persistence contract consumed by the session
// engine: users, and token records for the refresh and verification families.
//
// Backends live in subpackages: memory (tests and single-process use),
// sqlstore (PostgreSQL via pgx, SQLite via modernc) and redisstore.
// storetest holds the shared behavioral suite every backend must pass.
package store
