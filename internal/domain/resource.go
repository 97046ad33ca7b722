package domain

import (
	"fmt"
	"time"
)

// ResourceKind distinguishes the two checkable record types.
type ResourceKind string

const (
	KindService ResourceKind = "service"
	KindLayer   ResourceKind = "layer"
)

// ResourceKey addresses a resource across kinds. It keys the check history.
type ResourceKey struct {
	Kind ResourceKind `json:"kind"`
	ID   int64        `json:"id"`
}

func (k ResourceKey) String() string {
	return fmt.Sprintf("%s:%d", k.Kind, k.ID)
}

// Resource holds the fields shared by services and layers.
type Resource struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Abstract    string    `json:"abstract"`
	URL         string    `json:"url"`
	Created     time.Time `json:"created"`
	LastUpdated time.Time `json:"last_updated"`

	// Active=false freezes the record: harvests leave it untouched but it
	// stays in the catalog.
	Active   bool `json:"active"`
	IsPublic bool `json:"is_public"`
}

// Touch sets LastUpdated, and Created on first use.
func (r *Resource) Touch(now time.Time) {
	if r.Created.IsZero() {
		r.Created = now
	}
	r.LastUpdated = now
}

// Checkable is anything a check can be recorded against.
type Checkable interface {
	ResourceKey() ResourceKey
	IsActive() bool
}
