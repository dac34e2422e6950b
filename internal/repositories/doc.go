// Package repositories implements session storage backends.
//
// [MemorySessionRepository] keeps sessions in process memory and is the default.
// [SessionRepository] persists them in SQLite so sessions survive a restart.
// Both implement [SessionStore]: the CRUD operations of [models.Repository] plus [SessionStore.PurgeExpired]
// for the idle-session janitor.
//
// Repositories hand out copies: callers mutate their own [models.Session] and write it back with Update.
package repositories
