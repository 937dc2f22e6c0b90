package repository

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/alanwang67/activation_registry/idl"
)

// Verifier checks a definition before RegisterServer records it.
type Verifier interface {
	Verify(ctx context.Context, def idl.ServerDef) error
}

// BootstrapLocator reports the endpoints the daemon's bootstrap naming
// service listens on.
type BootstrapLocator interface {
	BootstrapEndpoint(ctx context.Context, index int) (idl.EndPointInfo, error)
}

// StaticBootstrap is a locator for a single configured endpoint. Only Port
// is reported; EndPointInfo has no host field, so Host is kept for logging.
type StaticBootstrap struct {
	Host string
	Port int32
}

func (s StaticBootstrap) BootstrapEndpoint(_ context.Context, index int) (idl.EndPointInfo, error) {
	if index != 0 {
		return idl.EndPointInfo{}, fmt.Errorf("no bootstrap endpoint %d", index)
	}
	return idl.EndPointInfo{EndpointType: "IIOP_CLEAR_TEXT", Port: s.Port}, nil
}

// EndpointVerifier accepts a definition when the locator reports a bootstrap
// endpoint 0 with a positive port and the class path names something that
// can be executed. It does not dial the endpoint.
type EndpointVerifier struct {
	Locator BootstrapLocator
	// LookPath defaults to exec.LookPath.
	LookPath func(file string) (string, error)
}

func (v *EndpointVerifier) Verify(ctx context.Context, def idl.ServerDef) error {
	if v.Locator == nil {
		return &BadServerDefinitionError{Reason: ReasonBootstrapUnavailable}
	}
	ep, err := v.Locator.BootstrapEndpoint(ctx, 0)
	if err != nil || ep.Port <= 0 {
		return &BadServerDefinitionError{Reason: ReasonBootstrapUnavailable}
	}

	lookPath := v.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	if def.ServerClassPath == "" {
		return &BadServerDefinitionError{Reason: ReasonMainClassNotFound}
	}
	if _, err := lookPath(def.ServerClassPath); err != nil {
		return &BadServerDefinitionError{Reason: ReasonMainClassNotFound}
	}
	return nil
}
