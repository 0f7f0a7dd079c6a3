package model

import "time"

// CacheKV backs the SQLite ports.Cache implementation. expires_at is NULL
// for entries without a ttl.
type CacheKV struct {
	Key       string     `gorm:"column:key;primaryKey"`
	Value     string     `gorm:"column:value;type:text;not null"`
	ExpiresAt *time.Time `gorm:"column:expires_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at;not null"`
}

func (CacheKV) TableName() string {
	return "cache_kv"
}
