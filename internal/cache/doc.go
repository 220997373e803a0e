// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package cache provides a sharded, size-bounded LRU cache.
//
//	c := cache.New[layoutKey, Line](64)
//	line := c.GetOrCreate(key, func() Line { return layout(key) })
//
// Keys are spread over 16 shards with hash/maphash so concurrent readers of
// different keys rarely contend. Each shard evicts its least recently used
// entry once it holds its capacity.
package cache
