// Package watcher reports files that have finished being written anywhere
// below a root directory.
//
// fsnotify has no portable close-write notification, so a file counts as
// finished once it has seen Create or Write events and then stayed quiet
// for a settle window. Newly created directories are added to the watch as
// they appear.
package watcher
