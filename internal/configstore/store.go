// Package configstore persists normalized financial configurations, one per
// tenant-unit assignment, with a revision counter bumped on every save.
package configstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matthewbaird/leasefin/internal/finconfig"
	"github.com/matthewbaird/leasefin/internal/types"
)

// ErrNotFound is returned when no configuration exists for an assignment.
var ErrNotFound = errors.New("financial configuration not found")

// ErrAlreadyExists is returned by Create when the assignment already has a configuration.
var ErrAlreadyExists = errors.New("financial configuration already exists")

// Record is a stored configuration.
type Record struct {
	TenantID      int64             `json:"tenant_id"`
	UnitID        int64             `json:"unit_id"`
	Flow          finconfig.Flow    `json:"flow"`
	Revision      int               `json:"revision"`
	Payload       finconfig.Payload `json:"payload"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	UpdatedBy     string            `json:"updated_by"`
	Source        string            `json:"source"`
	CorrelationID string            `json:"correlation_id,omitempty"`
}

// ListOptions filters List. Zero ids match every assignment.
type ListOptions struct {
	TenantID int64
	UnitID   int64
	Limit    int // default 50, max 500
	Offset   int
}

func (o ListOptions) limit() int {
	switch {
	case o.Limit <= 0:
		return 50
	case o.Limit > 500:
		return 500
	}
	return o.Limit
}

// Store reads and writes stored configurations.
type Store interface {
	// Create inserts the first revision for the payload's assignment, or
	// returns ErrAlreadyExists without touching the stored row.
	Create(ctx context.Context, flow finconfig.Flow, p finconfig.Payload, audit types.AuditInfo) (Record, error)

	// Save inserts or replaces the configuration for the payload's assignment.
	Save(ctx context.Context, flow finconfig.Flow, p finconfig.Payload, audit types.AuditInfo) (Record, error)

	// Get returns the configuration for an assignment, or ErrNotFound.
	Get(ctx context.Context, tenantID, unitID int64) (Record, error)

	// List returns configurations, most recently updated first.
	List(ctx context.Context, opts ListOptions) ([]Record, error)
}

func checkIdentity(p finconfig.Payload) error {
	if p.TenantID <= 0 {
		return fmt.Errorf("%w: tenant_id", finconfig.ErrMissingIdentity)
	}
	if p.UnitID <= 0 {
		return fmt.Errorf("%w: unit_id", finconfig.ErrMissingIdentity)
	}
	return nil
}

func newRecord(flow finconfig.Flow, p finconfig.Payload, audit types.AuditInfo, revision int, now time.Time) Record {
	return Record{
		TenantID:      p.TenantID,
		UnitID:        p.UnitID,
		Flow:          flow,
		Revision:      revision,
		Payload:       p,
		CreatedAt:     now,
		UpdatedAt:     now,
		UpdatedBy:     audit.Actor,
		Source:        audit.Source,
		CorrelationID: derefString(audit.CorrelationID),
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
