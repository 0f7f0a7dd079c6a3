package model

import "time"

// GitState is owned exclusively by the repository sync engine.
type GitState struct {
	TenantID       string     `gorm:"column:tenant_id;primaryKey"`
	EnvironmentID  string     `gorm:"column:environment_id;primaryKey"`
	CanonicalID    string     `gorm:"column:canonical_id;primaryKey"`
	GitPath        string     `gorm:"column:git_path;type:text;not null"`
	GitContentHash string     `gorm:"column:git_content_hash;type:text;not null"`
	GitCommitSHA   string     `gorm:"column:git_commit_sha;type:text;not null;default:''"`
	LastRepoSyncAt *time.Time `gorm:"column:last_repo_sync_at"`
}

func (GitState) TableName() string {
	return "git_states"
}
