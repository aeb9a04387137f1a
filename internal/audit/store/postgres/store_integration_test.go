//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/Louguiman/tekra-store-sub002/internal/audit"
	"github.com/Louguiman/tekra-store-sub002/pkg/testutil/containers"
	dErrors "github.com/Louguiman/tekra-store-sub002/pkg/domain-errors"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Store
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = New(s.pg.DB)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateAll(context.Background()))
}

func (s *PostgresStoreSuite) TearDownSuite() {
	_ = s.pg.DB.Close()
	_ = s.pg.Container.Terminate(context.Background())
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) event(actor string, action audit.Action) audit.Event {
	return audit.Event{
		ID:        uuid.New(),
		ActorID:   actor,
		Action:    action,
		Resource:  audit.ResourceProduct,
		Severity:  audit.SeverityLow,
		Success:   true,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestAppendAndQueryRoundtrip() {
	ctx := context.Background()

	event := s.event("u1", audit.ActionCreate)
	event.Metadata = map[string]any{"sku": "TSH-001", "productCount": 3}
	event.IPAddress = "10.0.0.5"
	s.Require().NoError(s.store.Append(ctx, event))

	page, err := s.store.QueryEvents(ctx, audit.EventFilter{Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Require().Equal(1, page.Total)

	got := page.Items[0]
	s.Equal(event.ID, got.ID)
	s.Equal("u1", got.ActorID)
	s.Equal("TSH-001", got.Metadata["sku"])
	s.Equal(float64(3), got.Metadata["productCount"], "JSONB numbers come back as float64")
	s.WithinDuration(event.CreatedAt, got.CreatedAt, time.Millisecond)
}

func (s *PostgresStoreSuite) TestQueryEventsMultiActionFilter() {
	ctx := context.Background()

	s.Require().NoError(s.store.Append(ctx, s.event("v1", audit.ActionApprove)))
	s.Require().NoError(s.store.Append(ctx, s.event("v1", audit.ActionBulkReject)))
	s.Require().NoError(s.store.Append(ctx, s.event("v1", audit.ActionCreate)))

	page, err := s.store.QueryEvents(ctx, audit.EventFilter{
		Actions: []audit.Action{audit.ActionApprove, audit.ActionBulkReject},
		Page:    1, Limit: 10,
	})
	s.Require().NoError(err)
	s.Equal(2, page.Total)
}

func (s *PostgresStoreSuite) TestListTrailDualKey() {
	ctx := context.Background()

	canonical := s.event("sup-1", audit.ActionSupplierSubmission)
	canonical.Resource = audit.ResourceSupplierSubmission
	canonical.ResourceID = "sub-1"
	s.Require().NoError(s.store.Append(ctx, canonical))

	viaMetadata := s.event("admin-1", audit.ActionApprove)
	viaMetadata.Resource = audit.ResourceSupplierSubmission
	viaMetadata.Metadata = map[string]any{"submissionId": "sub-1"}
	s.Require().NoError(s.store.Append(ctx, viaMetadata))

	trail, err := s.store.ListTrail(ctx, audit.ResourceSupplierSubmission, "submissionId", "sub-1", audit.EventFilter{})
	s.Require().NoError(err)
	s.Len(trail, 2)
}

func (s *PostgresStoreSuite) TestFailedLoginsAndSources() {
	ctx := context.Background()

	failed := s.event("", audit.ActionLogin)
	failed.Resource = audit.ResourceAuth
	failed.Success = false
	failed.IPAddress = "10.0.0.5"
	s.Require().NoError(s.store.Append(ctx, failed))

	success := s.event("u1", audit.ActionLogin)
	success.Resource = audit.ResourceAuth
	success.IPAddress = "10.0.0.5"
	success.UserAgent = "Mozilla/5.0 Chrome/120"
	s.Require().NoError(s.store.Append(ctx, success))
	dup := success
	dup.ID = uuid.New()
	s.Require().NoError(s.store.Append(ctx, dup))

	count, err := s.store.CountFailedLogins(ctx, "10.0.0.5", time.Now().Add(-15*time.Minute))
	s.Require().NoError(err)
	s.Equal(1, count)

	sources, err := s.store.ListLoginSources(ctx, "u1", time.Now().Add(-time.Hour))
	s.Require().NoError(err)
	s.Len(sources, 1, "duplicate (ip, user-agent) pairs collapse")
}

func (s *PostgresStoreSuite) TestAlertLifecycle() {
	ctx := context.Background()

	alert := audit.Alert{
		ID:        uuid.New(),
		Type:      audit.AlertBruteForce,
		Severity:  audit.SeverityHigh,
		Details:   map[string]any{"ip": "10.0.0.5"},
		Status:    audit.AlertStatusOpen,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	s.Require().NoError(s.store.Insert(ctx, alert))

	got, err := s.store.Get(ctx, alert.ID)
	s.Require().NoError(err)
	s.Equal(audit.AlertStatusOpen, got.Status)

	now := time.Now().UTC().Truncate(time.Microsecond)
	got.Status = audit.AlertStatusDismissed
	got.ResolvedBy = "admin-1"
	got.ResolutionNotes = "false positive"
	got.ResolvedAt = &now
	s.Require().NoError(s.store.UpdateResolution(ctx, got))

	updated, err := s.store.Get(ctx, alert.ID)
	s.Require().NoError(err)
	s.Equal(audit.AlertStatusDismissed, updated.Status)
	s.Equal("admin-1", updated.ResolvedBy)
	s.Require().NotNil(updated.ResolvedAt)

	missing := got
	missing.ID = uuid.New()
	err = s.store.UpdateResolution(ctx, missing)
	s.Require().Error(err)
	s.Equal(dErrors.CodeNotFound, dErrors.CodeOf(err))
}
