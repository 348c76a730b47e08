package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/triedb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// ErrKeyNotFound is returned by Get when the key has never been written.
var ErrKeyNotFound = errors.New("storage: key not found")

// Database is the key-value backend the settlement state is persisted to. The
// raw Put/Get surface carries non-trie metadata (committed root, genesis hash)
// while TrieDB exposes the handle the state trie operates on.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	TrieDB() *triedb.Database
	Close() error
}

// --- In-memory backend (tests, single-shot tools) ---

type MemDB struct {
	mu     sync.RWMutex
	meta   map[string][]byte
	kv     ethdb.Database
	trieDB *triedb.Database
}

func NewMemDB() *MemDB {
	kv := rawdb.NewMemoryDatabase()
	return &MemDB{
		meta:   make(map[string][]byte),
		kv:     kv,
		trieDB: triedb.NewDatabase(kv, triedb.HashDefaults),
	}
}

func (db *MemDB) Put(key []byte, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.meta[string(key)] = append([]byte(nil), value...)
	return nil
}

func (db *MemDB) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	value, ok := db.meta[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), value...), nil
}

func (db *MemDB) TrieDB() *triedb.Database {
	return db.trieDB
}

func (db *MemDB) Close() error {
	return db.kv.Close()
}

// --- Persistent backend ---

// LevelDB is the durable backend used by swapd. Compaction and cache sizing
// are tuned for the small-record, high-churn workload of the settlement
// ledger.
type LevelDB struct {
	kv     *leveldb.Database
	raw    ethdb.Database
	trieDB *triedb.Database
}

const (
	levelDBCacheMiB   = 128
	levelDBOpenFiles  = 256
	levelDBNamespace  = "stealthswap/db"
	levelDBWriteBufMB = 16
)

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	kv, err := leveldb.NewCustom(path, levelDBNamespace, func(options *opt.Options) {
		options.BlockCacheCapacity = levelDBCacheMiB * opt.MiB
		options.WriteBuffer = levelDBWriteBufMB * opt.MiB
		options.OpenFilesCacheCapacity = levelDBOpenFiles
	})
	if err != nil {
		return nil, fmt.Errorf("storage: open leveldb at %s: %w", path, err)
	}
	raw := rawdb.NewDatabase(kv)
	return &LevelDB{
		kv:     kv,
		raw:    raw,
		trieDB: triedb.NewDatabase(raw, triedb.HashDefaults),
	}, nil
}

func (db *LevelDB) Put(key []byte, value []byte) error {
	return db.kv.Put(key, value)
}

func (db *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := db.kv.Get(key)
	if errors.Is(err, ldberrors.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	return value, err
}

func (db *LevelDB) TrieDB() *triedb.Database {
	return db.trieDB
}

func (db *LevelDB) Close() error {
	return db.kv.Close()
}
