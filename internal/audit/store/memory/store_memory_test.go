package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Louguiman/tekra-store-sub002/internal/audit"
	dErrors "github.com/Louguiman/tekra-store-sub002/pkg/domain-errors"
)

func event(actor string, action audit.Action, at time.Time) audit.Event {
	return audit.Event{
		ID:        uuid.New(),
		ActorID:   actor,
		Action:    action,
		Resource:  audit.ResourceProduct,
		Severity:  audit.SeverityLow,
		Success:   true,
		CreatedAt: at,
	}
}

func TestQueryEventsPagingAndOrder(t *testing.T) {
	store := NewInMemoryStore()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	for i := range 5 {
		require.NoError(t, store.Append(context.Background(), event("u1", audit.ActionCreate, base.Add(time.Duration(i)*time.Minute))))
	}

	page, err := store.QueryEvents(context.Background(), audit.EventFilter{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Items, 2)
	assert.True(t, page.Items[0].CreatedAt.After(page.Items[1].CreatedAt), "newest first")

	last, err := store.QueryEvents(context.Background(), audit.EventFilter{Page: 3, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, last.Items, 1)

	beyond, err := store.QueryEvents(context.Background(), audit.EventFilter{Page: 9, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, beyond.Items)
	assert.Equal(t, 5, beyond.Total)
}

func TestQueryEventsFilters(t *testing.T) {
	store := NewInMemoryStore()
	now := time.Now()

	require.NoError(t, store.Append(context.Background(), event("u1", audit.ActionCreate, now)))
	require.NoError(t, store.Append(context.Background(), event("u2", audit.ActionDelete, now)))

	page, err := store.QueryEvents(context.Background(), audit.EventFilter{ActorID: "u2", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, audit.ActionDelete, page.Items[0].Action)

	page, err = store.QueryEvents(context.Background(), audit.EventFilter{
		Actions: []audit.Action{audit.ActionCreate, audit.ActionUpdate},
		Page:    1, Limit: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestCountFailedLoginsWindow(t *testing.T) {
	store := NewInMemoryStore()
	now := time.Now()

	inWindow := event("", audit.ActionLogin, now)
	inWindow.IPAddress = "10.0.0.5"
	inWindow.Success = false
	require.NoError(t, store.Append(context.Background(), inWindow))

	stale := event("", audit.ActionLogin, now.Add(-time.Hour))
	stale.IPAddress = "10.0.0.5"
	stale.Success = false
	require.NoError(t, store.Append(context.Background(), stale))

	succeeded := event("u1", audit.ActionLogin, now)
	succeeded.IPAddress = "10.0.0.5"
	require.NoError(t, store.Append(context.Background(), succeeded))

	count, err := store.CountFailedLogins(context.Background(), "10.0.0.5", now.Add(-15*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestListTrailDualKey(t *testing.T) {
	store := NewInMemoryStore()
	now := time.Now()

	canonical := event("sup-1", audit.ActionSupplierSubmission, now)
	canonical.Resource = audit.ResourceSupplierSubmission
	canonical.ResourceID = "sub-1"
	require.NoError(t, store.Append(context.Background(), canonical))

	viaMetadata := event("admin-1", audit.ActionApprove, now)
	viaMetadata.Resource = audit.ResourceSupplierSubmission
	viaMetadata.ResourceID = ""
	viaMetadata.Metadata = map[string]any{"submissionId": "sub-1"}
	require.NoError(t, store.Append(context.Background(), viaMetadata))

	other := event("sup-2", audit.ActionSupplierSubmission, now)
	other.Resource = audit.ResourceSupplierSubmission
	other.ResourceID = "sub-2"
	require.NoError(t, store.Append(context.Background(), other))

	trail, err := store.ListTrail(context.Background(), audit.ResourceSupplierSubmission, "submissionId", "sub-1", audit.EventFilter{})
	require.NoError(t, err)
	assert.Len(t, trail, 2)
}

func TestAlertLifecycle(t *testing.T) {
	store := NewInMemoryStore()

	alert := audit.Alert{
		ID:        uuid.New(),
		Type:      audit.AlertBruteForce,
		Severity:  audit.SeverityHigh,
		Status:    audit.AlertStatusOpen,
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.Insert(context.Background(), alert))

	got, err := store.Get(context.Background(), alert.ID)
	require.NoError(t, err)
	assert.Equal(t, audit.AlertStatusOpen, got.Status)

	_, err = store.Get(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))

	now := time.Now()
	got.Status = audit.AlertStatusResolved
	got.ResolvedBy = "admin-1"
	got.ResolvedAt = &now
	require.NoError(t, store.UpdateResolution(context.Background(), got))

	updated, err := store.Get(context.Background(), alert.ID)
	require.NoError(t, err)
	assert.Equal(t, audit.AlertStatusResolved, updated.Status)

	missing := got
	missing.ID = uuid.New()
	err = store.UpdateResolution(context.Background(), missing)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))
}
