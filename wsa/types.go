package wsa

import (
	"github.com/rjboer/GoWSA/internal/capture"
	"github.com/rjboer/GoWSA/internal/device"
	"github.com/rjboer/GoWSA/internal/sweep"
	"github.com/rjboer/GoWSA/internal/vrt"
	"github.com/rjboer/GoWSA/internal/wsaerr"
)

type (
	Gain             = device.Gain
	Identity         = device.Identity
	Descriptor       = device.Descriptor
	CaptureConfig    = capture.Config
	SweepEntry       = sweep.Entry
	SweepStatus      = sweep.Status
	Packet           = vrt.Packet
	PacketKind       = vrt.Kind
	ReceiverContext  = vrt.ReceiverContext
	DigitizerContext = vrt.DigitizerContext
	Error            = wsaerr.Error
	Code             = wsaerr.Code
	Kind             = wsaerr.Kind
)

const (
	GainUnknown = device.GainUnknown
	GainHigh    = device.GainHigh
	GainMed     = device.GainMed
	GainLow     = device.GainLow
	GainVLow    = device.GainVLow
)

const (
	SweepStopped = sweep.Stopped
	SweepRunning = sweep.Running
)

const (
	PacketIFData    = vrt.KindIFData
	PacketReceiver  = vrt.KindReceiver
	PacketDigitizer = vrt.KindDigitizer
)

// CodeOf returns the library code carried by err, OK for nil.
func CodeOf(err error) Code { return wsaerr.CodeOf(err) }
