package inode

import (
	"fmt"

	. "github.com/multios/mfs/pkg/types"
)

// CachingStore fronts a TableStore with an LRU cache. Put writes
// through (so journaled operations capture the table block); PutBuffered
// only dirties the cache and is reserved for access-time updates, which
// are flushed outside the journal by Sync and Unmount.
type CachingStore struct {
	backend InodeStore
	cache   *Cache
	dirty   map[Ino]struct{}
}

var _ InodeStore = (*CachingStore)(nil)

func NewCachingStore(backend InodeStore, cacheCapacity int) *CachingStore {
	return &CachingStore{
		backend: backend,
		cache:   NewCache(cacheCapacity),
		dirty:   make(map[Ino]struct{}),
	}
}

func (store *CachingStore) Put(inode *Inode) error {
	if err := store.backend.Put(inode); err != nil {
		return fmt.Errorf("storing inode `%d`: %w", inode.Ino, err)
	}
	store.push(inode)
	delete(store.dirty, inode.Ino)
	return nil
}

// PutBuffered caches the record without persisting it.
func (store *CachingStore) PutBuffered(inode *Inode) {
	store.push(inode)
	store.dirty[inode.Ino] = struct{}{}
}

func (store *CachingStore) push(inode *Inode) {
	var evicted Inode
	if store.cache.Push(inode, &evicted) {
		if _, dirty := store.dirty[evicted.Ino]; dirty {
			// best effort: an evicted dirty record only carries buffered
			// access times; losing the write is recoverable, failing the
			// whole operation is not worth it
			_ = store.backend.Put(&evicted)
			delete(store.dirty, evicted.Ino)
		}
	}
}

func (store *CachingStore) Get(ino Ino, output *Inode) error {
	if store.cache.Get(ino, output) {
		return nil
	}
	if err := store.backend.Get(ino, output); err != nil {
		return fmt.Errorf(
			"fetching inode `%d`: cache miss; checking inode table: %w",
			ino,
			err,
		)
	}
	var evicted Inode
	clone := *output
	if store.cache.Push(&clone, &evicted) {
		if _, dirty := store.dirty[evicted.Ino]; dirty {
			_ = store.backend.Put(&evicted)
			delete(store.dirty, evicted.Ino)
		}
	}
	return nil
}

// FlushBuffered persists every record dirtied by PutBuffered.
func (store *CachingStore) FlushBuffered() error {
	for ino := range store.dirty {
		var inode Inode
		if !store.cache.Get(ino, &inode) {
			delete(store.dirty, ino)
			continue
		}
		if err := store.backend.Put(&inode); err != nil {
			return fmt.Errorf("flushing buffered inode `%d`: %w", ino, err)
		}
		delete(store.dirty, ino)
	}
	return nil
}

// Evict drops a record from the cache without writing it; used when an
// inode is deallocated.
func (store *CachingStore) Evict(ino Ino) {
	var removed Inode
	store.cache.Remove(ino, &removed)
	delete(store.dirty, ino)
}
