package jobapplication

import "time"

// State is the workflow state of a job application.
// Only accepted applications are relevant to employee record processing.
type State string

const (
	StateNew        State = "new"
	StateProcessing State = "processing"
	StateAccepted   State = "accepted"
	StateRefused    State = "refused"
	StateCancelled  State = "cancelled"
)

// SenderKind identifies who submitted the job application.
type SenderKind string

const (
	SenderJobSeeker  SenderKind = "job_seeker"
	SenderPrescriber SenderKind = "prescriber"
	SenderEmployer   SenderKind = "employer"
)

// CompanyKind is the work-integration structure kind (SIAE/GEIQ).
type CompanyKind string

const (
	KindEI   CompanyKind = "EI"
	KindAI   CompanyKind = "AI"
	KindACI  CompanyKind = "ACI"
	KindETTI CompanyKind = "ETTI"
	KindEITI CompanyKind = "EITI"
	KindEA   CompanyKind = "EA"
	KindGEIQ CompanyKind = "GEIQ"
)

// Title is the civility of a job seeker, as expected by ASP.
type Title string

const (
	TitleM   Title = "M"
	TitleMME Title = "MME"
)

// FranceCountryCode is the INSEE country code for France; a job seeker born
// in France must carry a resolved birth commune.
const FranceCountryCode = "100"

// Convention is the administrative attachment of a company to ASP.
type Convention struct {
	ASPID           int64  `json:"asp_id"`
	ASPConventionID string `json:"asp_convention_id"`
}

// Company is the hiring SIAE/GEIQ, reduced to what employee records need.
type Company struct {
	ID         string      `json:"id"`
	SIRET      string      `json:"siret"`
	Kind       CompanyKind `json:"kind"`
	Convention *Convention `json:"convention"`
}

// Approval is the PASS IAE attached to the hiring.
type Approval struct {
	Number               string    `json:"number"`
	StartAt              time.Time `json:"start_at"`
	EndAt                time.Time `json:"end_at"`
	CreateEmployeeRecord bool      `json:"create_employee_record"`

	// HasDateAmendments reports suspensions or prolongations recorded on
	// the approval; used when a duplicate rejection must still notify ASP
	// of the real end date.
	HasDateAmendments bool `json:"has_date_amendments"`
}

// Commune is an INSEE commune (birthplace or HEXA address commune).
type Commune struct {
	Code           string `json:"code"`
	DepartmentCode string `json:"department_code"`
}

// Country is an INSEE country with its ASP country group.
type Country struct {
	Code  string `json:"code"`
	Group string `json:"group"`
}

// Profile is the job seeker profile snapshot consumed by the serializer.
// HEXA fields hold the address in the normalized format ASP expects.
type Profile struct {
	ASPUID string `json:"asp_uid"`

	BirthDate    *time.Time `json:"birth_date"`
	BirthPlace   *Commune   `json:"birth_place"` // nil unless born in France
	BirthCountry *Country   `json:"birth_country"`

	EducationLevel  string `json:"education_level"`
	IsEmployed      bool   `json:"is_employed"`
	UnemployedSince string `json:"unemployed_since"`
	Resourceless    bool   `json:"resourceless"`
	PoleEmploiID    string `json:"pole_emploi_id"`
	PoleEmploiSince string `json:"pole_emploi_since"`
	RQTHEmployee    bool   `json:"rqth_employee"`
	OETHEmployee    bool   `json:"oeth_employee"`
	SocialAllowance bool   `json:"social_allowance"`
	RSAAllocation   string `json:"rsa_allocation"`
	RSASince        string `json:"rsa_since"`
	ASSAllocation   bool   `json:"ass_allocation"`
	ASSSince        string `json:"ass_since"`
	AAHAllocation   bool   `json:"aah_allocation"`
	AAHSince        string `json:"aah_since"`

	HexaLaneNumber        string   `json:"hexa_lane_number"`
	HexaStdExtension      string   `json:"hexa_std_extension"`
	HexaLaneType          string   `json:"hexa_lane_type"`
	HexaLaneName          string   `json:"hexa_lane_name"`
	HexaAdditionalAddress string   `json:"hexa_additional_address"`
	HexaPostCode          string   `json:"hexa_post_code"`
	HexaCommune           *Commune `json:"hexa_commune"`
}

// HexaAddressFilled reports whether the normalized address is complete
// enough for transmission.
func (p *Profile) HexaAddressFilled() bool {
	return p.HexaLaneType != "" && p.HexaLaneName != "" && p.HexaPostCode != "" && p.HexaCommune != nil
}

// JobSeeker is the hired person.
type JobSeeker struct {
	ID        string   `json:"id"`
	Title     Title    `json:"title"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	NIR       string   `json:"nir"`
	Profile   *Profile `json:"profile"`
}

// JobApplication is the snapshot of an accepted hiring consumed by the
// employee record engine. It is read-only here: the job application
// workflow itself lives outside this module.
type JobApplication struct {
	ID                   string     `json:"id"`
	State                State      `json:"state"`
	SenderKind           SenderKind `json:"sender_kind"`
	SenderPrescriberKind string     `json:"sender_prescriber_kind"`
	HiringStartAt        *time.Time `json:"hiring_start_at"`
	Company              *Company   `json:"company"`
	Approval             *Approval  `json:"approval"`
	JobSeeker            *JobSeeker `json:"job_seeker"`
}
