// Package wsaerr defines the status codes returned by the analyser client and
// the error type that carries them.
//
// Codes are negative and offset from LNEG, so a failed operation can still be
// reported as a signed status with Status.
package wsaerr

import (
	"fmt"

	"golang.org/x/xerrors"
)

// LNEG is the base of every status code.
const LNEG = -10000

// Code is a negative operation status.
type Code int16

const (
	OK Code = 0

	SetFailed Code = LNEG - 103

	InvIPHostAddress      Code = LNEG - 205
	EthernetConnectFailed Code = LNEG - 207
	SocketError           Code = LNEG - 212
	SocketDropped         Code = LNEG - 213

	InvAmp Code = LNEG - 301

	InvSampleSize     Code = LNEG - 403
	NotIQFrame        Code = LNEG - 405
	InvDecimationRate Code = LNEG - 406
	InvTimestamp      Code = LNEG - 407
	InvPacketsPerBlk  Code = LNEG - 408

	FreqOutOfBound Code = LNEG - 601
	InvFreqRes     Code = LNEG - 602
	PLLLockFailed  Code = LNEG - 604

	InvRFGain Code = LNEG - 801
	InvIFGain Code = LNEG - 802

	InvStopFreq  Code = LNEG - 1202
	StartOOB     Code = LNEG - 1203
	StopOOB      Code = LNEG - 1204
	InvTrigRange Code = LNEG - 1207
	InvDwell     Code = LNEG - 1208

	CmdSendFailed Code = LNEG - 1501
	CmdInvalid    Code = LNEG - 1502
	RespUnknown   Code = LNEG - 1503
	QueryNoResp   Code = LNEG - 1504

	InvAntennaPort Code = LNEG - 1601
	InvFilterMode  Code = LNEG - 1603
	InvRFESetting  Code = LNEG - 1607

	SweepAlreadyRunning Code = LNEG - 1701
	SweepListEmpty      Code = LNEG - 1702
	SweepIDOOB          Code = LNEG - 1703
	SweepModeUndef      Code = LNEG - 1704
	InvIteration        Code = LNEG - 1705

	UnknownRFEVersion Code = LNEG - 5

	InvNumber Code = LNEG - 2000
)

var names = map[Code]string{
	OK:                    "OK",
	SetFailed:             "SETFAILED",
	InvIPHostAddress:      "INVIPHOSTADDRESS",
	EthernetConnectFailed: "ETHERNETCONNECTFAILED",
	SocketError:           "SOCKETERROR",
	SocketDropped:         "SOCKETDROPPED",
	InvAmp:                "INVAMP",
	InvSampleSize:         "INVSAMPLESIZE",
	NotIQFrame:            "NOTIQFRAME",
	InvDecimationRate:     "INVDECIMATIONRATE",
	InvTimestamp:          "INVTIMESTAMP",
	InvPacketsPerBlk:      "INVPACKETSPERBLOCK",
	FreqOutOfBound:        "FREQOUTOFBOUND",
	InvFreqRes:            "INVFREQRES",
	PLLLockFailed:         "PLLLOCKFAILED",
	InvRFGain:             "INVRFGAIN",
	InvIFGain:             "INVIFGAIN",
	InvStopFreq:           "INVSTOPFREQ",
	StartOOB:              "STARTOOB",
	StopOOB:               "STOPOOB",
	InvTrigRange:          "INVTRIGRANGE",
	InvDwell:              "INVDWELL",
	CmdSendFailed:         "CMDSENDFAILED",
	CmdInvalid:            "CMDINVALID",
	RespUnknown:           "RESPUNKNOWN",
	QueryNoResp:           "QUERYNORESP",
	InvAntennaPort:        "INVANTENNAPORT",
	InvFilterMode:         "INVFILTERMODE",
	InvRFESetting:         "INVRFESETTING",
	SweepAlreadyRunning:   "SWEEPALREADYRUNNING",
	SweepListEmpty:        "SWEEPLISTEMPTY",
	SweepIDOOB:            "SWEEPIDOOB",
	SweepModeUndef:        "SWEEPMODEUNDEF",
	InvIteration:          "INVITERATION",
	UnknownRFEVersion:     "UNKNOWNRFEVSN",
	InvNumber:             "INVNUMBER",
}

// String returns the mnemonic of the code.
func (c Code) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("CODE(%d)", int16(c))
}

// Kind groups codes by failure class.
type Kind int

const (
	KindNone Kind = iota
	KindTransport
	KindTimeout
	KindProtocol
	KindValidation
	KindState
	KindData
	KindDevice
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTransport:
		return "transport"
	case KindTimeout:
		return "timeout"
	case KindProtocol:
		return "protocol"
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindData:
		return "data"
	case KindDevice:
		return "device"
	default:
		return "unknown"
	}
}

// Kind classifies the code.
func (c Code) Kind() Kind {
	switch c {
	case OK:
		return KindNone
	case InvIPHostAddress, EthernetConnectFailed, SocketError, SocketDropped, CmdSendFailed:
		return KindTransport
	case QueryNoResp:
		return KindTimeout
	case RespUnknown, CmdInvalid, InvTimestamp:
		return KindProtocol
	case SweepAlreadyRunning, SweepListEmpty, SweepIDOOB, SweepModeUndef:
		return KindState
	case NotIQFrame:
		return KindData
	case SetFailed, PLLLockFailed, UnknownRFEVersion:
		return KindDevice
	default:
		return KindValidation
	}
}

// Error is a failed operation with its status code.
type Error struct {
	Code Code
	Op   string
	Err  error

	frame xerrors.Frame
}

// New returns an error for op with the given code.
func New(code Code, op string) *Error {
	return &Error{Code: code, Op: op, frame: xerrors.Caller(1)}
}

// Wrap returns an error for op with the given code wrapping err.
func Wrap(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err, frame: xerrors.Caller(1)}
}

// Errorf is New with a formatted cause.
func Errorf(code Code, op string, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Err: fmt.Errorf(format, args...), frame: xerrors.Caller(1)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s (%d)", e.Op, e.Code, int16(e.Code))
	}
	return fmt.Sprintf("%s: %s (%d): %v", e.Op, e.Code, int16(e.Code), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Kind classifies the error.
func (e *Error) Kind() Kind { return e.Code.Kind() }

// Status returns the signed status of the error.
func (e *Error) Status() int16 { return int16(e.Code) }

// Format prints the call site with %+v.
func (e *Error) Format(s fmt.State, v rune) { xerrors.FormatError(e, s, v) }

// FormatError implements xerrors.Formatter.
func (e *Error) FormatError(p xerrors.Printer) error {
	p.Printf("%s: %s (%d)", e.Op, e.Code, int16(e.Code))
	e.frame.Format(p)
	return e.Err
}

// CodeOf returns the code carried by err, OK for nil and SocketError for
// errors that carry none.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var e *Error
	if xerrors.As(err, &e) {
		return e.Code
	}
	return SocketError
}

// Status returns the signed status for err: zero on success, negative otherwise.
func Status(err error) int16 {
	return int16(CodeOf(err))
}

// KindOf returns the class of err.
func KindOf(err error) Kind {
	return CodeOf(err).Kind()
}

// Has reports whether err carries code.
func Has(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
