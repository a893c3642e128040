package storage

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/openmana/accountserver/engine/common"
	"github.com/openmana/accountserver/engine/config"
	"github.com/openmana/accountserver/engine/storage/backend/filesystem"
	"github.com/openmana/accountserver/engine/storage/backend/mongodb"
	"github.com/openmana/accountserver/engine/storage/backend/redis"
	"github.com/openmana/accountserver/engine/storage/storage_common"
)

// Character is the authoritative persisted state of one player character.
// See storage_common for the field definitions.
type Character = storagecommon.Character

// ErrCharacterNotFound is returned by Fetch for unknown character IDs
var ErrCharacterNotFound = storagecommon.ErrCharacterNotFound

// CharacterStorage is the interface of character storage backends.
//
// Fetch returns a freshly loaded copy each call; callers own the copy and
// write it back with Persist. Two concurrent read-modify-write cycles on the
// same character ID must be excluded by the caller (see Locker).
type CharacterStorage = storagecommon.CharacterStorage

// OpenStorage opens the character storage configured in the [storage] section
func OpenStorage(cfg *config.StorageConfig) (CharacterStorage, error) {
	switch cfg.Type {
	case "filesystem":
		return filesystem.OpenDirectory(cfg.Directory)
	case "mongodb":
		return mongodb.OpenMongoDB(cfg.Url, cfg.DB)
	case "redis":
		return redis.OpenRedis(cfg.Url, cfg.DB)
	}
	return nil, errors.Errorf("unknown storage type: %s", cfg.Type)
}

// BanUntil computes the ban expiry timestamp for a ban starting now
func BanUntil(duration time.Duration) int64 {
	return time.Now().Add(duration).Unix()
}

// _CHAR_LOCKS is the number of stripes of the character locker
const _CHAR_LOCKS = 64

// Locker serializes read-modify-write cycles per character ID.
//
// Striped: different IDs may share a stripe, the same ID always maps to the
// same stripe.
type Locker struct {
	locks [_CHAR_LOCKS]sync.Mutex
}

// NewLocker creates a character Locker
func NewLocker() *Locker {
	return &Locker{}
}

// Lock locks the stripe of the character ID
func (l *Locker) Lock(id common.CharacterID) {
	l.locks[uint32(id)%_CHAR_LOCKS].Lock()
}

// Unlock unlocks the stripe of the character ID
func (l *Locker) Unlock(id common.CharacterID) {
	l.locks[uint32(id)%_CHAR_LOCKS].Unlock()
}
