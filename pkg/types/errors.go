package types

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindFramework      ErrorKind = "framework"
	KindValidation     ErrorKind = "validation"
	KindNetwork        ErrorKind = "network"
	KindWeb            ErrorKind = "web"
	KindOSINT          ErrorKind = "osint"
	KindDatabase       ErrorKind = "database"
	KindAuthentication ErrorKind = "authentication"
	KindConfig         ErrorKind = "config"
	KindTool           ErrorKind = "tool"
)

// Error is a classified failure. Every kind is a Framework error.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

// Sentinels for errors.Is. ErrFramework matches every *Error.
var (
	ErrFramework      = &Error{Kind: KindFramework}
	ErrValidation     = &Error{Kind: KindValidation}
	ErrNetwork        = &Error{Kind: KindNetwork}
	ErrWeb            = &Error{Kind: KindWeb}
	ErrOSINT          = &Error{Kind: KindOSINT}
	ErrDatabase       = &Error{Kind: KindDatabase}
	ErrAuthentication = &Error{Kind: KindAuthentication}
	ErrConfig         = &Error{Kind: KindConfig}
	ErrTool           = &Error{Kind: KindTool}
)

func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind ErrorKind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Msg == "" && e.Err == nil:
		return string(e.Kind) + " error"
	case e.Err == nil:
		return e.Msg
	case e.Msg == "":
		return e.Err.Error()
	default:
		return e.Msg + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches kind sentinels. A sentinel carries no message and no cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Msg != "" || t.Err != nil {
		return false
	}
	return t.Kind == KindFramework || t.Kind == e.Kind
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
