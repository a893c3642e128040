package redis

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/garyburd/redigo/redis"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack"

	"github.com/openmana/accountserver/engine/common"
	. "github.com/openmana/accountserver/engine/storage/storage_common"
)

const (
	_CHARACTER_KEY_PREFIX = "_CH_"
	_QUESTVAR_KEY_PREFIX  = "_QV_"
)

type redisCharacterStorage struct {
	mu sync.Mutex // redigo connections are not safe for concurrent use
	c  redis.Conn
}

// OpenRedis opens redis as character storage; db is the redis database index
func OpenRedis(host string, db string) (CharacterStorage, error) {
	c, err := redis.Dial("tcp", host)
	if err != nil {
		return nil, errors.Wrap(err, "redis dial failed")
	}

	dbindex := 0
	if db != "" {
		dbindex, err = strconv.Atoi(db)
		if err != nil {
			c.Close()
			return nil, errors.Wrapf(err, "invalid redis db index: %s", db)
		}
	}
	if _, err := c.Do("SELECT", dbindex); err != nil {
		c.Close()
		return nil, errors.Wrap(err, "redis select failed")
	}

	return &redisCharacterStorage{c: c}, nil
}

func characterKey(id common.CharacterID) string {
	return fmt.Sprintf("%s%d", _CHARACTER_KEY_PREFIX, id)
}

func questVarKey(id common.CharacterID) string {
	return fmt.Sprintf("%s%d", _QUESTVAR_KEY_PREFIX, id)
}

func (cs *redisCharacterStorage) Fetch(id common.CharacterID) (*Character, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	r, err := cs.c.Do("GET", characterKey(id))
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrCharacterNotFound
	}

	ch := &Character{}
	if err := msgpack.Unmarshal(r.([]byte), ch); err != nil {
		return nil, err
	}
	return ch, nil
}

func (cs *redisCharacterStorage) Persist(ch *Character) error {
	data, err := msgpack.Marshal(ch)
	if err != nil {
		return err
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	_, err = cs.c.Do("SET", characterKey(ch.ID), data)
	return err
}

func (cs *redisCharacterStorage) QuestVar(id common.CharacterID, name string) (string, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	r, err := cs.c.Do("HGET", questVarKey(id), name)
	if err != nil {
		return "", err
	}
	if r == nil {
		return "", nil
	}
	return string(r.([]byte)), nil
}

func (cs *redisCharacterStorage) SetQuestVar(id common.CharacterID, name string, value string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	_, err := cs.c.Do("HSET", questVarKey(id), name, value)
	return err
}

func (cs *redisCharacterStorage) Ban(id common.CharacterID, until int64) error {
	ch, err := cs.Fetch(id)
	if err != nil {
		return err
	}
	ch.BanUntil = until
	return cs.Persist(ch)
}

func (cs *redisCharacterStorage) Close() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.c.Close()
}
