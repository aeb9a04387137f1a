package supplier_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/Louguiman/tekra-store-sub002/internal/audit"
	"github.com/Louguiman/tekra-store-sub002/internal/audit/recorder"
	auditmem "github.com/Louguiman/tekra-store-sub002/internal/audit/store/memory"
	"github.com/Louguiman/tekra-store-sub002/internal/supplier"
	suppliermem "github.com/Louguiman/tekra-store-sub002/internal/supplier/store/memory"
	dErrors "github.com/Louguiman/tekra-store-sub002/pkg/domain-errors"
)

type AuditorSuite struct {
	suite.Suite
	events  *auditmem.InMemoryStore
	store   *suppliermem.InMemoryStore
	auditor *supplier.Auditor
}

func (s *AuditorSuite) SetupTest() {
	s.events = auditmem.NewInMemoryStore()
	s.store = suppliermem.NewInMemoryStore()

	rec, err := recorder.New(s.events)
	s.Require().NoError(err)

	s.auditor, err = supplier.NewAuditor(rec, s.events, supplier.WithStore(s.store))
	s.Require().NoError(err)
}

func TestAuditorSuite(t *testing.T) {
	suite.Run(t, new(AuditorSuite))
}

func (s *AuditorSuite) TestLogSupplierRegistration() {
	event, err := s.auditor.LogSupplierRegistration(context.Background(), supplier.RegistrationEvent{
		SupplierID: "sup-1",
		Name:       "Kone Textiles",
		Phone:      "+22370000000",
	})
	s.Require().NoError(err)

	s.Equal(audit.ActionSupplierRegistration, event.Action)
	s.Equal(audit.ResourceSupplier, event.Resource)
	s.Equal("sup-1", event.ResourceID)
	s.True(event.Success)
	s.Equal("Kone Textiles", event.Metadata["name"])
}

func (s *AuditorSuite) TestLogSupplierAuthenticationSeverityByOutcome() {
	ok, err := s.auditor.LogSupplierAuthentication(context.Background(), supplier.AuthenticationEvent{
		SupplierID: "sup-1",
		IPAddress:  "10.0.0.5",
		Success:    true,
	})
	s.Require().NoError(err)
	s.Equal(audit.SeverityLow, ok.Severity)
	s.Equal(audit.ActionLogin, ok.Action)

	failed, err := s.auditor.LogSupplierAuthentication(context.Background(), supplier.AuthenticationEvent{
		SupplierID:   "sup-1",
		IPAddress:    "10.0.0.5",
		Success:      false,
		ErrorMessage: "invalid pin",
	})
	s.Require().NoError(err)
	s.Equal(audit.SeverityMedium, failed.Severity)
	s.False(failed.Success)

	count, err := s.events.CountFailedLogins(context.Background(), "10.0.0.5", failed.CreatedAt.Add(-1))
	s.Require().NoError(err)
	s.Equal(1, count, "failed supplier logins must feed the brute-force counter")
}

func (s *AuditorSuite) TestLogSupplierSubmission() {
	event, err := s.auditor.LogSupplierSubmission(context.Background(), supplier.SubmissionEvent{
		SubmissionID: "sub-1",
		SupplierID:   "sup-1",
		ContentType:  supplier.ContentImage,
		MessageID:    "wamid.123",
	})
	s.Require().NoError(err)

	s.Equal(audit.ActionSupplierSubmission, event.Action)
	s.Equal("sub-1", event.ResourceID)
	s.Equal("image", event.Metadata["contentType"])
	s.Equal("wamid.123", event.Metadata["messageId"])

	_, err = s.auditor.LogSupplierSubmission(context.Background(), supplier.SubmissionEvent{
		SubmissionID: "sub-2",
		SupplierID:   "sup-1",
		ContentType:  "video",
	})
	s.Require().Error(err)
	s.Equal(dErrors.CodeValidation, dErrors.CodeOf(err))
}

func (s *AuditorSuite) TestLogAIProcessing() {
	event, err := s.auditor.LogAIProcessing(context.Background(), supplier.AIProcessingEvent{
		SubmissionID:      "sub-1",
		SupplierID:        "sup-1",
		ExtractedProducts: 4,
		AvgConfidence:     82.5,
		ProcessingTimeMs:  1340,
		Model:             "extraction-v2",
		Success:           true,
	})
	s.Require().NoError(err)

	s.Equal(audit.ActionAIProcessing, event.Action)
	s.Equal(4, event.Metadata["extractedProducts"])
	s.Equal(82.5, event.Metadata["avgConfidence"])
	s.Equal("extraction-v2", event.Metadata["model"])
}

func (s *AuditorSuite) TestLogValidationRejectsUnknownAction() {
	_, err := s.auditor.LogValidation(context.Background(), supplier.ValidationEvent{
		SubmissionID: "sub-1",
		ValidatorID:  "admin-1",
		Action:       audit.ActionDelete,
	})
	s.Require().Error(err)
	s.Equal(dErrors.CodeValidation, dErrors.CodeOf(err))
}

func (s *AuditorSuite) TestSupplierTrailDualKey() {
	ctx := context.Background()

	_, err := s.auditor.LogSupplierRegistration(ctx, supplier.RegistrationEvent{SupplierID: "sup-1", Name: "Kone"})
	s.Require().NoError(err)

	// Attributed to the submission, supplier only in metadata.
	_, err = s.auditor.LogSupplierSubmission(ctx, supplier.SubmissionEvent{
		SubmissionID: "sub-1",
		SupplierID:   "sup-1",
		ContentType:  supplier.ContentText,
	})
	s.Require().NoError(err)

	// Attributed to auth and inventory respectively; the trail spans the
	// whole lifecycle, not just the supplier and submission resources.
	_, err = s.auditor.LogSupplierAuthentication(ctx, supplier.AuthenticationEvent{
		SupplierID: "sup-1",
		IPAddress:  "10.0.0.5",
		Success:    true,
	})
	s.Require().NoError(err)
	_, err = s.auditor.LogInventoryIntegration(ctx, supplier.InventoryIntegrationEvent{
		SubmissionID: "sub-1",
		SupplierID:   "sup-1",
		ProductID:    "prod-9",
		Operation:    supplier.IntegrationCreate,
		Success:      true,
	})
	s.Require().NoError(err)

	// Another supplier's noise.
	_, err = s.auditor.LogSupplierRegistration(ctx, supplier.RegistrationEvent{SupplierID: "sup-2", Name: "Diallo"})
	s.Require().NoError(err)

	trail, err := s.auditor.GetSupplierAuditTrail(ctx, "sup-1", audit.EventFilter{})
	s.Require().NoError(err)
	s.Require().Len(trail, 4, "trail must include events attributed via metadata, not only resourceId")

	resources := make(map[audit.Resource]bool)
	for _, e := range trail {
		resources[e.Resource] = true
	}
	s.True(resources[audit.ResourceAuth], "authentication events belong to the supplier trail")
	s.True(resources[audit.ResourceInventory], "inventory events belong to the supplier trail")
}

func (s *AuditorSuite) TestSubmissionTrailDualKey() {
	ctx := context.Background()

	_, err := s.auditor.LogSupplierSubmission(ctx, supplier.SubmissionEvent{
		SubmissionID: "sub-1",
		SupplierID:   "sup-1",
		ContentType:  supplier.ContentPDF,
	})
	s.Require().NoError(err)

	// Inventory integration is attributed to the product, submission in
	// metadata only.
	_, err = s.auditor.LogInventoryIntegration(ctx, supplier.InventoryIntegrationEvent{
		SubmissionID: "sub-1",
		SupplierID:   "sup-1",
		ProductID:    "prod-9",
		Operation:    supplier.IntegrationCreate,
		Success:      true,
	})
	s.Require().NoError(err)

	trail, err := s.auditor.GetSubmissionAuditTrail(ctx, "sub-1")
	s.Require().NoError(err)
	s.Len(trail, 1, "inventory events carry resource=inventory and stay out of the submission trail")

	validation := supplier.ValidationEvent{
		SubmissionID: "sub-1",
		SupplierID:   "sup-1",
		ValidatorID:  "admin-1",
		Action:       audit.ActionApprove,
		ProductCount: 2,
	}
	_, err = s.auditor.LogValidation(ctx, validation)
	s.Require().NoError(err)

	trail, err = s.auditor.GetSubmissionAuditTrail(ctx, "sub-1")
	s.Require().NoError(err)
	s.Len(trail, 2)
}

func (s *AuditorSuite) TestRecordStage() {
	log, err := s.auditor.RecordStage(context.Background(), "sub-1",
		supplier.StageAIExtraction, supplier.StageCompleted, 900, "", map[string]any{"products": 3})
	s.Require().NoError(err)
	s.Equal(supplier.StageAIExtraction, log.Stage)
	s.False(log.CreatedAt.IsZero())

	_, err = s.auditor.RecordStage(context.Background(), "sub-1",
		supplier.StageInventoryUpdate, supplier.StageFailed, 120, "inventory service unreachable", nil)
	s.Require().NoError(err)

	logs, err := s.auditor.GetProcessingLogs(context.Background(), "sub-1")
	s.Require().NoError(err)
	s.Require().Len(logs, 2)
	s.Equal(supplier.StageAIExtraction, logs[0].Stage, "stage log keeps attempt order")
	s.Equal(supplier.StageFailed, logs[1].Status)

	_, err = s.auditor.RecordStage(context.Background(), "sub-1", "shipping", supplier.StageStarted, 0, "", nil)
	s.Require().Error(err)
	s.Equal(dErrors.CodeValidation, dErrors.CodeOf(err))
}

func (s *AuditorSuite) TestRecordSubmissionResult() {
	sub, err := s.auditor.RecordSubmissionResult(context.Background(), supplier.TemplateSubmission{
		SubmissionID:    "sub-1",
		Result:          supplier.ResultPartialSuccess,
		ConfidenceScore: 61.5,
		ValidationErrors: []supplier.FieldError{
			{Field: "price", Kind: supplier.FieldOutOfRange, Message: "price must be positive"},
		},
	})
	s.Require().NoError(err)
	s.NotZero(sub.ID)

	_, err = s.auditor.RecordSubmissionResult(context.Background(), supplier.TemplateSubmission{
		SubmissionID:    "sub-1",
		Result:          supplier.ResultSuccess,
		ConfidenceScore: 140,
	})
	s.Require().Error(err)
	s.Equal(dErrors.CodeValidation, dErrors.CodeOf(err))
}
