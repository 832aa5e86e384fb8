package models

import "time"

// Permission is an explicit ACL entry granted on top of the implicit
// owner grant. Entries never expire on their own.
type Permission struct {
	FileID     string    `json:"fileId"`
	UserID     string    `json:"userId"`
	Permission string    `json:"permission"`
	GrantedAt  time.Time `json:"grantedAt"`
}

const (
	PermissionRead  = "read"
	PermissionWrite = "write"
	PermissionAdmin = "admin"
)
