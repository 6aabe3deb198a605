// Package inventory walks the source tree and emits file records for every
// regular file that matches the configured extension set and size threshold.
// Scanning is a pure read: it never caches, so a rescan always reflects live
// filesystem state. Unreadable entries are skipped and counted rather than
// aborting the walk.
package inventory
