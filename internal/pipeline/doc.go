// Package pipeline connects the watcher, the delivery backend and the
// retry queue.
//
// The live path delivers each finished screenshot once and queues it on
// failure. The retry cycle runs on a fixed interval, redelivers every
// queued path and removes the ones that succeed by value, so entries
// appended by the live path during a cycle are never disturbed.
package pipeline
