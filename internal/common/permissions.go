package common

// File permission constants for files the CLI writes
const (
	// FilePermissionSecure is used for files that may hold credentials
	FilePermissionSecure = 0600

	// DirPermissionSecure is used for the per-user config directory
	DirPermissionSecure = 0700
)
