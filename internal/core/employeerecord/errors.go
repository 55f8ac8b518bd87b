package employeerecord

import "errors"

var (
	ErrInvalidState           = errors.New("employeerecord: invalid state for this action")
	ErrDuplicate              = errors.New("employeerecord: a record already exists for this approval and ASP id")
	ErrNotFound               = errors.New("employeerecord: not found")
	ErrInvalidID              = errors.New("employeerecord: invalid id")
	ErrInvalidASPID           = errors.New("employeerecord: invalid ASP id")
	ErrMissingJobApplication  = errors.New("employeerecord: job application is required")
	ErrInvalidBatchFilename   = errors.New("employeerecord: invalid ASP batch filename")
	ErrInvalidLineNumber      = errors.New("employeerecord: invalid batch line number")
	ErrBatchTooManyRecords    = errors.New("employeerecord: too many records for one upload batch")
	ErrBatchFileTooLarge      = errors.New("employeerecord: serialized batch file exceeds the ASP size limit")
	ErrBadFeedbackFilename    = errors.New("employeerecord: bad ASP feedback filename")
	ErrNotAnOrphan            = errors.New("employeerecord: record ASP id matches its company convention")
	ErrTooRecentToArchive     = errors.New("employeerecord: processed too recently to be archived")
	ErrNotADuplicateRejection = errors.New("employeerecord: record was not rejected as an ASP duplicate")
)
