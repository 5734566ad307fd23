package migrate

import (
	"errors"
	"time"

	"github.com/lherron/lkmig/internal/looker"
)

// Failure classes of a single object import.
var (
	// ErrNamespaceUnresolved means the destination space could not be
	// determined or does not exist. Nothing was created.
	ErrNamespaceUnresolved = errors.New("namespace unresolved")
	// ErrLookUnresolved means a dashboard element references a look that
	// does not exist under the destination space and title.
	ErrLookUnresolved = errors.New("look reference unresolved")
	// ErrCorrelation means a layout component could not be matched to
	// exactly one source component.
	ErrCorrelation = errors.New("layout component correlation failed")
	// ErrAlreadyImported means an earlier run already created the object.
	ErrAlreadyImported = errors.New("already imported")
	// ErrInvalidSource means the source object lacks data needed to copy it.
	ErrInvalidSource = errors.New("invalid source object")
)

// State is a step of an import. Looks pass through INIT,
// NAMESPACE_RESOLVED, QUERY_CREATED, LOOK_CREATED and COMPLETE; dashboards
// through the shell, filter, element and layout steps.
type State int

const (
	StateInit State = iota
	StateNamespaceResolved
	StateShellCreated
	StateFiltersCreated
	StateElementsCreated
	StateLayoutsCreated
	StateDefaultsDeleted
	StateComplete
	StateError
	StateRolledBack
	StateQueryCreated
	StateLookCreated
)

var stateNames = [...]string{
	StateInit:              "INIT",
	StateNamespaceResolved: "NAMESPACE_RESOLVED",
	StateShellCreated:      "SHELL_CREATED",
	StateFiltersCreated:    "FILTERS_CREATED",
	StateElementsCreated:   "ELEMENTS_CREATED",
	StateLayoutsCreated:    "LAYOUTS_CREATED",
	StateDefaultsDeleted:   "DEFAULTS_DELETED",
	StateComplete:          "COMPLETE",
	StateError:             "ERROR",
	StateRolledBack:        "ROLLED_BACK",
	StateQueryCreated:      "QUERY_CREATED",
	StateLookCreated:       "LOOK_CREATED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Kind is the type of object an import handled.
type Kind string

const (
	KindLook      Kind = "look"
	KindDashboard Kind = "dashboard"
)

// Status is the outcome of one object import.
type Status string

const (
	StatusCreated    Status = "created"
	StatusPlanned    Status = "planned"
	StatusSkipped    Status = "skipped"
	StatusFailed     Status = "failed"
	StatusRolledBack Status = "rolled_back"
)

// Result describes what one import call did. It is returned for every
// call, successful or not.
type Result struct {
	Kind          Kind
	SourceID      looker.ID
	SourceSpace   string
	Title         string
	TargetTitle   string
	TargetSpace   string
	TargetSpaceID looker.ID
	TargetID      looker.ID
	Status        Status
	// State is the last state reached. For looks it is COMPLETE on success.
	State State
	// FailedStep is the state whose work failed, when Status is failed or
	// rolled_back.
	FailedStep State
	Err        error
	Elapsed    time.Duration
}

// OK reports whether the import created or planned the object.
func (r *Result) OK() bool {
	return r.Status == StatusCreated || r.Status == StatusPlanned
}

// Message returns the error text, or "" on success.
func (r *Result) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
