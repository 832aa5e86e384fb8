package models

import "time"

// UserStorage tracks one owner's quota. UsedBytes is maintained as a
// counter alongside every create/delete and corrected by the background
// recount sweep.
type UserStorage struct {
	UserID      string    `json:"userId"`
	UsedBytes   int64     `json:"usedBytes"`
	LimitBytes  int64     `json:"limitBytes"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// StorageStats is the usage summary returned to clients.
type StorageStats struct {
	TotalFiles      int64   `json:"totalFiles"`
	TotalFolders    int64   `json:"totalFolders"`
	UsedBytes       int64   `json:"usedBytes"`
	LimitBytes      int64   `json:"limitBytes"`
	UsagePercentage float64 `json:"usagePercentage"`
}
