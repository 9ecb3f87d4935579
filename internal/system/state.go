package system

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"

	"github.com/KevinKickass/PowerInsight/internal/types"
)

type SystemState int

const (
	StateSetup SystemState = iota
	StateBootstrapping
	StateFinalizing
	StateConfiguring
	StatePostConfig
	StateRunning
	StateClosed
	StateError
)

func (s SystemState) String() string {
	switch s {
	case StateSetup:
		return "SETUP"
	case StateBootstrapping:
		return "BOOTSTRAPPING"
	case StateFinalizing:
		return "FINALIZING"
	case StateConfiguring:
		return "CONFIGURING"
	case StatePostConfig:
		return "POST_CONFIG"
	case StateRunning:
		return "RUNNING"
	case StateClosed:
		return "CLOSED"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func ValidateTransition(from, to SystemState) error {
	validTransitions := map[SystemState][]SystemState{
		StateSetup:         {StateBootstrapping, StateClosed},
		StateBootstrapping: {StateFinalizing, StateError},
		StateFinalizing:    {StateConfiguring, StateError},
		StateConfiguring:   {StatePostConfig, StateError},
		StatePostConfig:    {StateRunning, StateError},
		StateRunning:       {StateClosed},
		StateError:         {StateClosed},
		StateClosed:        {},
	}

	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("invalid current state: %s", from)
	}

	for _, validTo := range allowed {
		if validTo == to {
			return nil
		}
	}

	return fmt.Errorf("invalid state transition: %s -> %s", from, to)
}

// Stage is one step of Open, run in declaration order.
type Stage int

const (
	StageBootstrap Stage = iota
	StageFinalize
	StageUserConfig
	StagePostConfig
)

func (s Stage) String() string {
	switch s {
	case StageBootstrap:
		return "bootstrap"
	case StageFinalize:
		return "finalize"
	case StageUserConfig:
		return "user config"
	case StagePostConfig:
		return "post-config"
	default:
		return "unknown"
	}
}

// Category classifies a bootstrap failure for the diagnostic printed before
// the process exits.
type Category int

const (
	CategoryUnknown Category = iota
	CategorySyntax
	CategoryFile
	CategoryMemory
	CategoryRuntime
	CategoryDoubleFault
)

func (c Category) String() string {
	switch c {
	case CategorySyntax:
		return "syntax error"
	case CategoryFile:
		return "file error"
	case CategoryMemory:
		return "memory error"
	case CategoryRuntime:
		return "runtime error"
	case CategoryDoubleFault:
		return "error in error handling"
	default:
		return "unknown error"
	}
}

// Classify picks the category for a stage failure.
func Classify(err error) Category {
	var pathErr *fs.PathError
	switch {
	case err == nil:
		return CategoryUnknown
	case errors.Is(err, syscall.ENOMEM):
		return CategoryMemory
	case errors.Is(err, types.ErrConfig):
		return CategorySyntax
	case errors.As(err, &pathErr), errors.Is(err, fs.ErrNotExist):
		return CategoryFile
	default:
		return CategoryRuntime
	}
}

// BootstrapError is a fatal Open failure.
type BootstrapError struct {
	Stage    Stage
	Category Category
	Err      error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Category, e.Err)
}

func (e *BootstrapError) Unwrap() error {
	return e.Err
}
