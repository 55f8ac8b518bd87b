package jobapplication

import "time"

// Employee record transmission opened at different dates depending on the
// company kind. Hirings that started before the date for their kind are
// never transmitted.
var (
	featureAvailabilityDate     = time.Date(2021, time.September, 27, 0, 0, 0, 0, time.UTC)
	featureAvailabilityDateEITI = time.Date(2024, time.March, 25, 0, 0, 0, 0, time.UTC)
)

// AvailabilityDateForKind returns the date employee record processing became
// available for the given company kind.
func AvailabilityDateForKind(kind CompanyKind) time.Time {
	if kind == KindEITI {
		return featureAvailabilityDateEITI
	}
	return featureAvailabilityDate
}

// CheckEligibility reports whether the job application can yield an employee
// record, duplicate checks excepted (those need the store and belong to the
// employee record service). The first failed rule is returned.
func (ja *JobApplication) CheckEligibility() error {
	if ja.State != StateAccepted {
		return ErrMustBeAccepted
	}
	if ja.Approval == nil {
		return ErrMissingApproval
	}
	if !ja.Approval.CreateEmployeeRecord {
		return ErrApprovalNotEligible
	}
	if ja.Company == nil {
		return ErrMissingCompany
	}
	if ja.Company.Convention == nil {
		return ErrMissingConvention
	}
	if ja.HiringStartAt == nil {
		return ErrMissingHiringDate
	}
	if ja.HiringStartAt.Before(AvailabilityDateForKind(ja.Company.Kind)) {
		return ErrHiredBeforeFeature
	}
	return nil
}
