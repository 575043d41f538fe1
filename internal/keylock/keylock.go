// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

// Package keylock provides keyed exclusive sections.
//
// Personal record write-back is serialized per (user, segment) and
// achievement write-back per (segment, type). Each key gets its own mutex;
// the mutex is reference counted and dropped once nobody holds or waits
// for it, so the map does not grow with the number of segments seen.
package keylock

import (
	"context"
	"strings"
	"sync"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// Locker is a set of keyed mutexes. The zero value is ready to use.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// New creates a Locker.
func New() *Locker {
	return &Locker{locks: make(map[string]*entry)}
}

// Key joins parts into a lock key, e.g. Key("pr", user, segment).
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// Lock blocks until key is held and returns the function that releases it.
func (l *Locker) Lock(key string) (unlock func()) {
	e := l.acquire(key)
	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.release(key, e)
	}
}

// Do runs fn while holding key. It gives up with ctx.Err() if ctx is done
// before the lock is obtained.
func (l *Locker) Do(ctx context.Context, key string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := l.acquire(key)

	locked := make(chan struct{})
	go func() {
		e.mu.Lock()
		close(locked)
	}()

	select {
	case <-locked:
	case <-ctx.Done():
		// Hand the lock back once the goroutine gets it.
		go func() {
			<-locked
			e.mu.Unlock()
			l.release(key, e)
		}()
		return ctx.Err()
	}

	defer func() {
		e.mu.Unlock()
		l.release(key, e)
	}()
	return fn(ctx)
}

// Len returns the number of keys currently held or awaited.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (l *Locker) acquire(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks == nil {
		l.locks = make(map[string]*entry)
	}
	e, ok := l.locks[key]
	if !ok {
		e = &entry{}
		l.locks[key] = e
	}
	e.refs++
	return e
}

func (l *Locker) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}
