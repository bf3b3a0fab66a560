package config

import (
	"path/filepath"
	"strings"
)

const (
	storeKindVar   = "STORE_KIND"
	storePathVar   = "STORE_PATH"
	redisAddrVar   = "REDIS_ADDR"
	redisPrefixVar = "REDIS_PREFIX"
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

type StoreConfig interface {
	GetStoreKind() string
	GetStorePath() string
	GetRedisAddr() string
	GetRedisPrefix() string
}

type Store struct {
	src *source
}

var _ StoreConfig = Store{}

func (s Store) GetStoreKind() string {
	return strings.ToLower(s.src.get(storeKindVar, StoreFile))
}

func (s Store) GetStorePath() string {
	return s.src.get(storePathVar, filepath.Join(EnvVars(s).GetDataFolder(), "session.json"))
}

func (s Store) GetRedisAddr() string {
	return s.src.get(redisAddrVar, "localhost:6379")
}

func (s Store) GetRedisPrefix() string {
	return s.src.get(redisPrefixVar, "tuniway:")
}
