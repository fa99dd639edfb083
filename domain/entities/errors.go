package entities

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the reconciliation error taxonomy
var (
	ErrParse               = errors.New("unparseable device output")
	ErrTransport           = errors.New("transport failure")
	ErrTransportTimeout    = errors.New("transport timeout")
	ErrDeviceRejected      = errors.New("command rejected by device")
	ErrUnsupportedChange   = errors.New("unsupported change kind")
	ErrInvalidDesiredState = errors.New("invalid desired state")
	ErrUnknownPlatform     = errors.New("unknown switch platform")
	ErrPlatformNotDetected = errors.New("unable to detect switch platform")
	ErrSessionNotConnected = errors.New("device session not connected")
	ErrNotConverged        = errors.New("device state did not converge")
	ErrUnknownTarget       = errors.New("target not registered in the YAML configuration")
)

// ParseError reports device output that exists for a VLAN but cannot be
// turned into a DeviceState.
type ParseError struct {
	VLANID int
	Reason string
	Output string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse vlan %d: %s", e.VLANID, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrParse
}

// NewParseError creates a parse error carrying the offending output.
func NewParseError(vlanID int, output, format string, args ...interface{}) *ParseError {
	return &ParseError{VLANID: vlanID, Reason: fmt.Sprintf(format, args...), Output: output}
}

// TransportError reports a session call that failed or ran out of time.
type TransportError struct {
	Op      string
	Target  string
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	kind := "failed"
	if e.Timeout {
		kind = "timed out"
	}
	msg := fmt.Sprintf("%s on %s %s", e.Op, e.Target, kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *TransportError) Unwrap() []error {
	sentinel := ErrTransport
	if e.Timeout {
		sentinel = ErrTransportTimeout
	}
	if e.Err == nil {
		return []error{sentinel}
	}
	return []error{sentinel, e.Err}
}

// DeviceError records one command the device refused and its error text.
type DeviceError struct {
	Command string `json:"command"`
	Message string `json:"message"`
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device rejected %q: %s", e.Command, strings.TrimSpace(e.Message))
}

func (e *DeviceError) Unwrap() error {
	return ErrDeviceRejected
}

// UnsupportedChangeError means the generator met a change kind it has no template for.
type UnsupportedChangeError struct {
	Kind     ChangeKind
	Platform string
}

func (e *UnsupportedChangeError) Error() string {
	return fmt.Sprintf("platform %s has no command for change %q", e.Platform, e.Kind)
}

func (e *UnsupportedChangeError) Unwrap() error {
	return ErrUnsupportedChange
}
