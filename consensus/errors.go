package consensus

// ErrorKind identifies the class of a verification failure, mirroring the
// kinds enumerated in the error-handling design: callers switch on kind,
// not on the message text.
type ErrorKind string

// Error satisfies the error interface directly on the kind, so a bare
// ErrorKind can be compared with errors.Is against a RuleError's ErrorCode.
func (k ErrorKind) Error() string { return string(k) }

const (
	ErrInvalidVersion      ErrorKind = "InvalidVersion"
	ErrInvalidNonce        ErrorKind = "InvalidNonce"
	ErrInvalidMerkleRoot   ErrorKind = "InvalidMerkleRoot"
	ErrInvalidBlockHash    ErrorKind = "InvalidBlockHash"
	ErrInvalidSignature    ErrorKind = "InvalidSignature"
	ErrInvalidReward       ErrorKind = "InvalidReward"
	ErrInvalidTransaction  ErrorKind = "InvalidTransaction"
	ErrDoubleSpend         ErrorKind = "DoubleSpend"
	ErrOrphanBlock         ErrorKind = "OrphanBlock"
	ErrRetargetDataMissing ErrorKind = "RetargetDataMissing"
)

// Transaction-level sub-causes, reported as the Description of a
// RuleError whose ErrorCode is ErrInvalidTransaction.
const (
	SubCauseBadSignature      = "BadSignature"
	SubCauseUnknownInput      = "UnknownInput"
	SubCauseDuplicateInput    = "DuplicateInput"
	SubCauseInsufficientValue = "InsufficientValue"
)

// RuleError is the error type every consensus check returns: a stable kind
// for programmatic dispatch plus a human-readable description for logs.
type RuleError struct {
	ErrorCode   ErrorKind
	Description string
}

func (e RuleError) Error() string {
	return e.Description
}

// Unwrap lets errors.Is(err, ErrInvalidTransaction) succeed against a
// RuleError without string comparison.
func (e RuleError) Unwrap() error {
	return e.ErrorCode
}

func ruleError(kind ErrorKind, desc string) RuleError {
	return RuleError{ErrorCode: kind, Description: desc}
}
