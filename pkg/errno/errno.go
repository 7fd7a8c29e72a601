package errno

import "errors"

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// Is matches any Errno carrying the same code, so a WithMessage variant
// still satisfies errors.Is against the base value.
func (e Errno) Is(target error) bool {
	var t Errno
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// WithMessage returns a copy of e with a different user-facing message.
func (e Errno) WithMessage(msg string) Errno {
	return Errno{Code: e.Code, Message: msg}
}

// Wrap attaches the underlying cause. The message shown to users stays
// e.Message; the cause is kept for logs and errors.Unwrap.
func (e Errno) Wrap(cause error) error {
	if cause == nil {
		return e
	}
	return &Err{Errno: e, Cause: cause}
}

// Err is an Errno plus the error that triggered it.
type Err struct {
	Errno
	Cause error
}

func (e *Err) Error() string {
	return e.Message + ": " + e.Cause.Error()
}

func (e *Err) Unwrap() error {
	return e.Cause
}

func (e *Err) Is(target error) bool {
	return e.Errno.Is(target)
}

// As returns the Errno carried by err, wrapped or not.
func As(err error) (Errno, bool) {
	var wrapped *Err
	if errors.As(err, &wrapped) {
		return wrapped.Errno, true
	}
	var typed Errno
	if errors.As(err, &typed) {
		return typed, true
	}
	return Errno{}, false
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}
	if e, ok := As(err); ok {
		return e.Code, e.Message
	}
	return InternalServerError.Code, err.Error()
}

// From returns the Errno carried by err, or UnknownFailure.
func From(err error) Errno {
	if e, ok := As(err); ok {
		return e
	}
	return ErrUnknownFailure
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrUnknownKind      = Errno{Code: 10005, Message: "Unknown transaction kind"}
)

// Session errors (20100+)
var (
	ErrNoProviderFound     = Errno{Code: 20101, Message: "No Web3 wallet detected. Please install or configure a wallet."}
	ErrConnectionTimeout   = Errno{Code: 20102, Message: "Connection timed out. Please try again."}
	ErrUserRejected        = Errno{Code: 20103, Message: "Request cancelled by user"}
	ErrContractInitFailed  = Errno{Code: 20104, Message: "Contract initialization failed. Please check contract addresses."}
	ErrAccountSwitchFailed = Errno{Code: 20105, Message: "Failed to switch account"}
	ErrConnectFailed       = Errno{Code: 20106, Message: "Failed to connect wallet"}
)

// Transaction errors (20200+)
var (
	ErrNotConnected                = Errno{Code: 20201, Message: "Please connect your wallet first."}
	ErrNotAuthorized               = Errno{Code: 20202, Message: "Only the contract owner can withdraw funds."}
	ErrInvalidAmount               = Errno{Code: 20203, Message: "Please enter a valid amount of ETH."}
	ErrAlreadyInFlight             = Errno{Code: 20204, Message: "A transaction of this kind is already in progress"}
	ErrInsufficientContractBalance = Errno{Code: 20205, Message: "Contract does not have enough ETH to withdraw"}
	ErrGasEstimationFailed         = Errno{Code: 20206, Message: "Gas estimation failed. Please try again."}
	ErrInsufficientFunds           = Errno{Code: 20207, Message: "Insufficient funds for transaction"}
	ErrTransactionReverted         = Errno{Code: 20208, Message: "Transaction failed"}
	ErrUnknownFailure              = Errno{Code: 20299, Message: "Transaction failed for an unknown reason"}
)
