package types

// Status is a type for the record status of a resource in the database.
// Soft deletion flips the status to deleted instead of removing the row, so
// invoice history stays queryable.
type Status string

const (
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
	StatusDeleted   Status = "deleted"
)
