package employeerecord

import (
	"errors"
	"testing"
	"time"

	"github.com/gip-inclusion/employee-records/internal/core/jobapplication"
)

func testApplication() *jobapplication.JobApplication {
	hiredAt := time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC)
	birthDate := time.Date(1990, time.January, 15, 0, 0, 0, 0, time.UTC)

	return &jobapplication.JobApplication{
		ID:            "ja-1",
		State:         jobapplication.StateAccepted,
		SenderKind:    jobapplication.SenderPrescriber,
		HiringStartAt: &hiredAt,
		Company: &jobapplication.Company{
			ID:    "company-1",
			SIRET: "33055039301440",
			Kind:  jobapplication.KindACI,
			Convention: &jobapplication.Convention{
				ASPID:           4321,
				ASPConventionID: "ACI023201111A0M0",
			},
		},
		Approval: &jobapplication.Approval{
			Number:               "999992100001",
			StartAt:              hiredAt,
			EndAt:                hiredAt.AddDate(2, 0, 0),
			CreateEmployeeRecord: true,
		},
		JobSeeker: &jobapplication.JobSeeker{
			ID:        "seeker-1",
			Title:     jobapplication.TitleMME,
			FirstName: "Sylvie Martine",
			LastName:  "Durand",
			Profile: &jobapplication.Profile{
				ASPUID:       "a1b2c3d4e5f60708",
				BirthDate:    &birthDate,
				BirthPlace:   &jobapplication.Commune{Code: "57463", DepartmentCode: "57"},
				BirthCountry: &jobapplication.Country{Code: jobapplication.FranceCountryCode, Group: "1"},

				HexaLaneNumber: "12",
				HexaLaneType:   "RUE",
				HexaLaneName:   "DES PEUPLIERS",
				HexaPostCode:   "57000",
				HexaCommune:    &jobapplication.Commune{Code: "57463", DepartmentCode: "57"},
			},
		},
	}
}

func testRecord() *EmployeeRecord {
	ja := testApplication()
	now := time.Date(2023, time.June, 2, 9, 0, 0, 0, time.UTC)
	return &EmployeeRecord{
		ID:               "er-1",
		Status:           StatusNew,
		JobApplicationID: ja.ID,
		ASPID:            ja.Company.Convention.ASPID,
		ApprovalNumber:   ja.Approval.Number,
		SIRET:            ja.Company.SIRET,
		CreatedAt:        now,
		UpdatedAt:        now,
		JobApplication:   ja,
	}
}

func TestEmployeeRecord_NominalLifecycle(t *testing.T) {
	t.Parallel()

	er := testRecord()
	now := time.Date(2023, time.June, 3, 10, 0, 0, 0, time.UTC)

	if err := er.UpdateAsReady(now); err != nil {
		t.Fatalf("UpdateAsReady: %v", err)
	}
	if er.Status != StatusReady {
		t.Fatalf("status = %s, want READY", er.Status)
	}

	filename := BatchFilename(now)
	if err := er.UpdateAsSent(filename, 3, []byte(`{"numLigne":3}`), now); err != nil {
		t.Fatalf("UpdateAsSent: %v", err)
	}
	if er.ASPBatchFile == nil || *er.ASPBatchFile != filename {
		t.Fatalf("batch file not recorded: %v", er.ASPBatchFile)
	}
	if er.ASPBatchLineNumber == nil || *er.ASPBatchLineNumber != 3 {
		t.Fatalf("line number not recorded: %v", er.ASPBatchLineNumber)
	}

	later := now.Add(time.Hour)
	if err := er.UpdateAsProcessed(ASPProcessingSuccessCode, "La ligne de la fiche salarié a été enregistrée avec succès.", []byte(`{}`), later); err != nil {
		t.Fatalf("UpdateAsProcessed: %v", err)
	}
	if er.Status != StatusProcessed {
		t.Fatalf("status = %s, want PROCESSED", er.Status)
	}
	if er.ProcessedAt == nil || !er.ProcessedAt.Equal(later) {
		t.Fatalf("processed at = %v, want %v", er.ProcessedAt, later)
	}
	if er.UpdatedAt != later {
		t.Fatalf("updated at = %v, want %v", er.UpdatedAt, later)
	}
}

func TestEmployeeRecord_RejectionAndResubmission(t *testing.T) {
	t.Parallel()

	er := testRecord()
	now := time.Date(2023, time.June, 3, 10, 0, 0, 0, time.UTC)

	if err := er.UpdateAsReady(now); err != nil {
		t.Fatalf("UpdateAsReady: %v", err)
	}
	if err := er.UpdateAsSent(BatchFilename(now), 1, nil, now); err != nil {
		t.Fatalf("UpdateAsSent: %v", err)
	}
	if err := er.UpdateAsRejected("3308", "Le champ Code Postal doit être au format 99999.", nil, now); err != nil {
		t.Fatalf("UpdateAsRejected: %v", err)
	}
	if er.Status != StatusRejected {
		t.Fatalf("status = %s, want REJECTED", er.Status)
	}

	// After correction the record goes through the full cycle again.
	if err := er.UpdateAsReady(now.Add(time.Hour)); err != nil {
		t.Fatalf("UpdateAsReady after rejection: %v", err)
	}
	if er.Status != StatusReady {
		t.Fatalf("status = %s, want READY", er.Status)
	}
}

func TestEmployeeRecord_ReadyRequiresCompleteProfile(t *testing.T) {
	t.Parallel()

	er := testRecord()
	er.JobApplication.JobSeeker.Profile.HexaCommune = nil

	err := er.UpdateAsReady(time.Now().UTC())
	if !errors.Is(err, jobapplication.ErrIncompleteProfile) {
		t.Fatalf("expected incomplete profile error, got %v", err)
	}
	if er.Status != StatusNew {
		t.Fatalf("status moved to %s on failed transition", er.Status)
	}
}

func TestEmployeeRecord_DuplicateForcing(t *testing.T) {
	t.Parallel()

	er := testRecord()
	now := time.Date(2023, time.June, 3, 10, 0, 0, 0, time.UTC)

	if err := er.UpdateAsReady(now); err != nil {
		t.Fatalf("UpdateAsReady: %v", err)
	}
	if err := er.UpdateAsSent(BatchFilename(now), 1, nil, now); err != nil {
		t.Fatalf("UpdateAsSent: %v", err)
	}
	if err := er.UpdateAsRejected(ASPDuplicateErrorCode, "Doublon", nil, now); err != nil {
		t.Fatalf("UpdateAsRejected: %v", err)
	}

	if err := er.UpdateAsProcessedAsDuplicate([]byte(`{}`), now); err != nil {
		t.Fatalf("UpdateAsProcessedAsDuplicate: %v", err)
	}
	if er.Status != StatusProcessed {
		t.Fatalf("status = %s, want PROCESSED", er.Status)
	}
	if !er.ProcessedAsDuplicate {
		t.Fatal("ProcessedAsDuplicate should be true")
	}
	if er.ASPProcessingLabel == nil || *er.ASPProcessingLabel != ASPDuplicateProcessingLabel {
		t.Fatalf("label = %v, want %q", er.ASPProcessingLabel, ASPDuplicateProcessingLabel)
	}
}

func TestEmployeeRecord_DuplicateForcingRequiresDuplicateCode(t *testing.T) {
	t.Parallel()

	er := testRecord()
	now := time.Date(2023, time.June, 3, 10, 0, 0, 0, time.UTC)

	if err := er.UpdateAsReady(now); err != nil {
		t.Fatalf("UpdateAsReady: %v", err)
	}
	if err := er.UpdateAsSent(BatchFilename(now), 1, nil, now); err != nil {
		t.Fatalf("UpdateAsSent: %v", err)
	}
	if err := er.UpdateAsRejected("3308", "autre erreur", nil, now); err != nil {
		t.Fatalf("UpdateAsRejected: %v", err)
	}

	err := er.UpdateAsProcessedAsDuplicate(nil, now)
	if !errors.Is(err, ErrNotADuplicateRejection) {
		t.Fatalf("expected ErrNotADuplicateRejection, got %v", err)
	}
	if er.Status != StatusRejected {
		t.Fatalf("status moved to %s on failed transition", er.Status)
	}
}

func TestEmployeeRecord_DisableAndReactivate(t *testing.T) {
	t.Parallel()

	now := time.Date(2023, time.June, 3, 10, 0, 0, 0, time.UTC)

	for _, from := range []Status{StatusNew, StatusReady, StatusSent, StatusRejected, StatusProcessed} {
		er := testRecord()
		er.Status = from

		if err := er.UpdateAsDisabled(now); err != nil {
			t.Fatalf("UpdateAsDisabled from %s: %v", from, err)
		}
		if err := er.UpdateAsNew(now.Add(time.Minute)); err != nil {
			t.Fatalf("UpdateAsNew from DISABLED: %v", err)
		}
		if er.Status != StatusNew {
			t.Fatalf("status = %s, want NEW", er.Status)
		}
	}

	er := testRecord()
	er.Status = StatusArchived
	if err := er.UpdateAsDisabled(now); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("disabling ARCHIVED should fail, got %v", err)
	}
}

func TestEmployeeRecord_Archiving(t *testing.T) {
	t.Parallel()

	er := testRecord()
	processedAt := time.Date(2023, time.June, 3, 10, 0, 0, 0, time.UTC)
	er.Status = StatusProcessed
	er.ProcessedAt = &processedAt
	er.ArchivedPayload = []byte(`{}`)

	tooSoon := processedAt.AddDate(0, 6, 0)
	if err := er.UpdateAsArchived(tooSoon); !errors.Is(err, ErrTooRecentToArchive) {
		t.Fatalf("expected ErrTooRecentToArchive, got %v", err)
	}

	oldEnough := processedAt.Add(ArchivingDelayInDays*24*time.Hour + time.Hour)
	if err := er.UpdateAsArchived(oldEnough); err != nil {
		t.Fatalf("UpdateAsArchived: %v", err)
	}
	if er.Status != StatusArchived {
		t.Fatalf("status = %s, want ARCHIVED", er.Status)
	}
	if er.ArchivedPayload != nil {
		t.Fatal("archived payload should be dropped")
	}
}

func TestEmployeeRecord_IsOrphan(t *testing.T) {
	t.Parallel()

	er := testRecord()
	if er.IsOrphan() {
		t.Fatal("record matching its company convention is not an orphan")
	}

	er.JobApplication.Company.Convention.ASPID = 9999
	if !er.IsOrphan() {
		t.Fatal("record diverging from its company convention is an orphan")
	}
}
