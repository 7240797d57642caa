// Package queue is the durable retry queue: a named list of screenshot
// paths stored in a single SQLite file (deckshot.db).
//
// Every mutating call commits before it returns, so the file on disk always
// reflects the last successful Enqueue or Remove. Entries are not unique;
// Remove deletes one occurrence of a value, never a position, which keeps
// removal correct while other goroutines append.
package queue
