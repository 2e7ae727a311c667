package shared

import "errors"

var (
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("accounting: entry requires at least two lines")
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("accounting: entry lines must balance")
	// ErrNegativeAmount indicates a line amount below zero.
	ErrNegativeAmount = errors.New("accounting: amounts must not be negative")
	// ErrAmountPrecision indicates more than two fraction digits.
	ErrAmountPrecision = errors.New("accounting: amounts are limited to two decimals")
	// ErrEmptyLine indicates a line with neither debit nor credit.
	ErrEmptyLine = errors.New("accounting: line carries no amount")
	// ErrInvalidTVARate indicates a rate outside the supported brackets.
	ErrInvalidTVARate = errors.New("accounting: unsupported tva rate")
	// ErrAccountRequired indicates a line without an account.
	ErrAccountRequired = errors.New("accounting: line account required")
	// ErrAccountNotPostable indicates a title account was referenced on a line.
	ErrAccountNotPostable = errors.New("accounting: only detail accounts accept lines")
	// ErrAccountInactive indicates a deactivated account was referenced on a line.
	ErrAccountInactive = errors.New("accounting: account is inactive")
	// ErrAccountNotFound indicates missing account.
	ErrAccountNotFound = errors.New("accounting: account not found")
	// ErrDuplicateAccountCode indicates the code is already registered.
	ErrDuplicateAccountCode = errors.New("accounting: account code already exists")
	// ErrInvalidAccount indicates class, nature, type or hierarchy rules failed.
	ErrInvalidAccount = errors.New("accounting: invalid account definition")
	// ErrJournalNotFound indicates missing journal.
	ErrJournalNotFound = errors.New("accounting: journal not found")
	// ErrDuplicateJournalCode indicates the journal code is already registered.
	ErrDuplicateJournalCode = errors.New("accounting: journal code already exists")
	// ErrFiscalYearNotFound indicates missing fiscal year.
	ErrFiscalYearNotFound = errors.New("accounting: fiscal year not found")
	// ErrFiscalYearClosed indicates a write against a closed fiscal year.
	ErrFiscalYearClosed = errors.New("accounting: fiscal year closed")
	// ErrFiscalYearOverlap indicates the range collides with an existing year.
	ErrFiscalYearOverlap = errors.New("accounting: fiscal year overlaps existing range")
	// ErrDateOutOfRange indicates entry date outside its fiscal year.
	ErrDateOutOfRange = errors.New("accounting: date outside fiscal year")
	// ErrEntryNotFound indicates missing entry.
	ErrEntryNotFound = errors.New("accounting: entry not found")
	// ErrDuplicateEntryNumber indicates the entry number is taken.
	ErrDuplicateEntryNumber = errors.New("accounting: entry number already exists")
	// ErrEntryValidated indicates a mutation attempt on a validated entry.
	ErrEntryValidated = errors.New("accounting: entry already validated")
	// ErrEntryNotValidated indicates an operation requiring a validated entry.
	ErrEntryNotValidated = errors.New("accounting: entry not validated")
	// ErrTotalsMismatch indicates cached header totals drifted from the lines.
	ErrTotalsMismatch = errors.New("accounting: header totals differ from lines")
	// ErrSourceAlreadyLinked indicates idempotency conflict.
	ErrSourceAlreadyLinked = errors.New("accounting: source already linked")
	// ErrMappingNotFound indicates account mapping missing.
	ErrMappingNotFound = errors.New("accounting: account mapping not found")
)
