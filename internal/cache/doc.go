// Package cache keeps synthesized narration so a segment read again, in
// this run or a later one, is not sent to the speech service twice. A
// small in-memory LRU sits in front of a zstd-compressed disk store.
package cache
