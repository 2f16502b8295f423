package queueaccess

import (
	"errors"
	"fmt"

	"obsdemux/internal/ipc"
	"obsdemux/internal/queue"
)

// Session pairs an Access with whatever must be released after use.
type Session struct {
	Access
	// Offline reports that the daemon was unreachable and the store is read directly.
	Offline bool
	release func() error
}

// Close releases the daemon connection or store handle.
func (s Session) Close() error {
	if s.release != nil {
		return s.release()
	}
	return nil
}

// OpenWithFallback prefers the daemon and falls back to opening the store.
// The dial error is discarded; callers only see store failures.
func OpenWithFallback(dial func() (*ipc.Client, error), openStore func() (*queue.Store, error)) (Session, error) {
	if dial != nil {
		client, err := dial()
		if err == nil {
			return Session{Access: NewIPCAccess(client), release: client.Close}, nil
		}
	}
	if openStore == nil {
		return Session{}, errors.New("daemon unreachable and no job store available")
	}
	store, err := openStore()
	if err != nil {
		return Session{}, fmt.Errorf("read job store: %w", err)
	}
	return Session{Access: NewStoreAccess(store), Offline: true, release: store.Close}, nil
}
