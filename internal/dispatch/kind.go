package dispatch

// Event names used on the wire.
const (
	NameWorkflowChanged = "WorkflowChangedEvent"
	NameComposite       = "CompositeEvent"
	NameDirtyState      = "ProjectDirtyStateEvent"
	NameAppState        = "AppStateChangedEvent"
	NameToast           = "ShowToastEvent"
	NameUpdateAvailable = "UpdateAvailableEvent"
)

// CompositeSeparator joins sub-event names in a composite eventType.
const CompositeSeparator = ":"

// EventKind is the closed set of event kinds the core knows about.
// Names registered by feature modules that are not in this set resolve to
// KindUnknown but are still dispatched by name.
type EventKind int

const (
	KindUnknown EventKind = iota
	KindWorkflowChanged
	KindComposite
	KindDirtyState
	KindAppState
	KindToast
	KindUpdateAvailable
)

var kindNames = [...]string{
	KindUnknown:         "",
	KindWorkflowChanged: NameWorkflowChanged,
	KindComposite:       NameComposite,
	KindDirtyState:      NameDirtyState,
	KindAppState:        NameAppState,
	KindToast:           NameToast,
	KindUpdateAvailable: NameUpdateAvailable,
}

// String returns the wire name of k, or "" for KindUnknown.
func (k EventKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return ""
	}
	return kindNames[k]
}

// ParseKind resolves a wire name to its kind.
func ParseKind(name string) EventKind {
	switch name {
	case NameWorkflowChanged:
		return KindWorkflowChanged
	case NameComposite:
		return KindComposite
	case NameDirtyState:
		return KindDirtyState
	case NameAppState:
		return KindAppState
	case NameToast:
		return KindToast
	case NameUpdateAvailable:
		return KindUpdateAvailable
	default:
		return KindUnknown
	}
}
