/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: types.go
Description: Read-only records exposed by an Android process/package registry. Process and
package records are owned by the device; droidquery only parses and filters them.
Also defines the caller identity, component kinds, component names and intents used
by the query operations.
*/

package appinfo

import (
	"fmt"
	"strings"
)

// Importance mirrors ActivityManager.RunningAppProcessInfo importance levels
type Importance int

const (
	ImportanceUnknown           Importance = 0
	ImportanceForeground        Importance = 100
	ImportanceForegroundService Importance = 125
	ImportanceVisible           Importance = 200
	ImportancePerceptible       Importance = 230
	ImportanceService           Importance = 300
	ImportanceTopSleeping       Importance = 325
	ImportanceCantSaveState     Importance = 350
	ImportanceCached            Importance = 400
	ImportanceEmpty             Importance = 500
	ImportanceGone              Importance = 1000

	// ImportanceBackground is the legacy name of the cached level
	ImportanceBackground = ImportanceCached
)

// String returns the lowercase name of the importance level
func (i Importance) String() string {
	switch i {
	case ImportanceUnknown:
		return "unknown"
	case ImportanceForeground:
		return "foreground"
	case ImportanceForegroundService:
		return "foreground_service"
	case ImportanceVisible:
		return "visible"
	case ImportancePerceptible:
		return "perceptible"
	case ImportanceService:
		return "service"
	case ImportanceTopSleeping:
		return "top_sleeping"
	case ImportanceCantSaveState:
		return "cant_save_state"
	case ImportanceCached:
		return "background"
	case ImportanceEmpty:
		return "empty"
	case ImportanceGone:
		return "gone"
	default:
		return fmt.Sprintf("importance(%d)", int(i))
	}
}

// ProcessRecord describes a running process as reported by the device
type ProcessRecord struct {
	PID        int        `json:"pid"`
	Name       string     `json:"name"`
	Importance Importance `json:"importance"`
}

// ApplicationFlags mirrors the ApplicationInfo.FLAG_* bitmask
type ApplicationFlags uint32

const (
	FlagSystem               ApplicationFlags = 1 << 0
	FlagDebuggable           ApplicationFlags = 1 << 1
	FlagHasCode              ApplicationFlags = 1 << 2
	FlagPersistent           ApplicationFlags = 1 << 3
	FlagFactoryTest          ApplicationFlags = 1 << 4
	FlagAllowTaskReparenting ApplicationFlags = 1 << 5
	FlagAllowClearUserData   ApplicationFlags = 1 << 6
	FlagUpdatedSystemApp     ApplicationFlags = 1 << 7
	FlagTestOnly             ApplicationFlags = 1 << 8
	FlagVMSafeMode           ApplicationFlags = 1 << 14
	FlagAllowBackup          ApplicationFlags = 1 << 15
	FlagLargeHeap            ApplicationFlags = 1 << 20
	FlagStopped              ApplicationFlags = 1 << 21
	FlagInstalled            ApplicationFlags = 1 << 23
)

var flagNames = map[string]ApplicationFlags{
	"SYSTEM":                 FlagSystem,
	"DEBUGGABLE":             FlagDebuggable,
	"HAS_CODE":               FlagHasCode,
	"PERSISTENT":             FlagPersistent,
	"FACTORY_TEST":           FlagFactoryTest,
	"ALLOW_TASK_REPARENTING": FlagAllowTaskReparenting,
	"ALLOW_CLEAR_USER_DATA":  FlagAllowClearUserData,
	"UPDATED_SYSTEM_APP":     FlagUpdatedSystemApp,
	"TEST_ONLY":              FlagTestOnly,
	"VM_SAFE_MODE":           FlagVMSafeMode,
	"ALLOW_BACKUP":           FlagAllowBackup,
	"LARGE_HEAP":             FlagLargeHeap,
	"STOPPED":                FlagStopped,
	"INSTALLED":              FlagInstalled,
}

// ParseApplicationFlags converts flag names as printed by dumpsys (e.g. "DEBUGGABLE HAS_CODE")
// into a bitmask. Unknown names are ignored.
func ParseApplicationFlags(names ...string) ApplicationFlags {
	var flags ApplicationFlags
	for _, name := range names {
		if f, ok := flagNames[strings.ToUpper(strings.TrimSpace(name))]; ok {
			flags |= f
		}
	}
	return flags
}

// Has reports whether all bits of f are set
func (a ApplicationFlags) Has(f ApplicationFlags) bool {
	return a&f == f
}

// ApplicationInfo is the application descriptor of a package
type ApplicationInfo struct {
	Label    string            `json:"label,omitempty"`
	LabelRes int               `json:"label_res,omitempty"`
	Flags    ApplicationFlags  `json:"flags"`
	MetaData map[string]string `json:"meta_data,omitempty"`
}

// PackageRecord describes an installed package
type PackageRecord struct {
	PackageName     string          `json:"package_name"`
	VersionName     string          `json:"version_name,omitempty"`
	VersionCode     int64           `json:"version_code,omitempty"`
	ApplicationInfo ApplicationInfo `json:"application_info"`
}

// ComponentKind selects which manifest component a meta-data lookup reads from
type ComponentKind int

const (
	KindUnknown ComponentKind = iota
	KindApplication
	KindService
	KindReceiver
	KindActivity
)

// ParseComponentKind parses application, service, receiver or activity (case-insensitive)
func ParseComponentKind(s string) ComponentKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "application", "app":
		return KindApplication
	case "service":
		return KindService
	case "receiver", "broadcastreceiver":
		return KindReceiver
	case "activity":
		return KindActivity
	default:
		return KindUnknown
	}
}

func (k ComponentKind) String() string {
	switch k {
	case KindApplication:
		return "application"
	case KindService:
		return "service"
	case KindReceiver:
		return "receiver"
	case KindActivity:
		return "activity"
	default:
		return "unknown"
	}
}

// ComponentName identifies an application component
type ComponentName struct {
	Package string `json:"package"`
	Class   string `json:"class"`
}

// ParseComponentName parses "pkg/cls" and expands the "pkg/.Cls" short form
func ParseComponentName(s string) (ComponentName, bool) {
	s = strings.TrimSpace(s)
	pkg, cls, ok := strings.Cut(s, "/")
	if !ok || pkg == "" || cls == "" {
		return ComponentName{}, false
	}
	if strings.HasPrefix(cls, ".") {
		cls = pkg + cls
	}
	return ComponentName{Package: pkg, Class: cls}, true
}

// IsZero reports whether the component is unset
func (c ComponentName) IsZero() bool {
	return c.Package == "" && c.Class == ""
}

// String returns the flattened "pkg/cls" form
func (c ComponentName) String() string {
	if c.IsZero() {
		return ""
	}
	return c.Package + "/" + c.Class
}

// ShortString returns "pkg/.Cls" when the class lives inside the package
func (c ComponentName) ShortString() string {
	if strings.HasPrefix(c.Class, c.Package+".") {
		return c.Package + "/" + strings.TrimPrefix(c.Class, c.Package)
	}
	return c.String()
}

// Intent actions, categories and flags used by the queries
const (
	ActionMain = "android.intent.action.MAIN"
	ActionView = "android.intent.action.VIEW"

	CategoryLauncher  = "android.intent.category.LAUNCHER"
	CategoryBrowsable = "android.intent.category.BROWSABLE"
	CategoryDefault   = "android.intent.category.DEFAULT"

	FlagActivityNewTask           = 0x10000000
	FlagActivityResetTaskIfNeeded = 0x00200000
	FlagActivityReorderToFront    = 0x00020000
)

// Intent is a launch or resolution request
type Intent struct {
	Action     string        `json:"action,omitempty"`
	Categories []string      `json:"categories,omitempty"`
	Data       string        `json:"data,omitempty"`
	Package    string        `json:"package,omitempty"`
	Component  ComponentName `json:"component,omitempty"`
	Flags      int           `json:"flags,omitempty"`
}

// AddCategory appends a category if it is not already present
func (i *Intent) AddCategory(category string) {
	for _, c := range i.Categories {
		if c == category {
			return
		}
	}
	i.Categories = append(i.Categories, category)
}

// ResolveInfo is one match returned by intent resolution
type ResolveInfo struct {
	Activity ComponentName `json:"activity"`
}

// Caller is the identity a query runs on behalf of. A nil *Caller means no context.
type Caller struct {
	PackageName string        `json:"package_name"`
	PID         int           `json:"pid,omitempty"`
	Component   ComponentName `json:"component,omitempty"`
	Finishing   bool          `json:"finishing,omitempty"`
	Destroyed   bool          `json:"destroyed,omitempty"`
}
