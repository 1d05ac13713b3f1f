/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: snapshot.go
Description: Snapshot is a point-in-time capture of what the query layer reports for one device
and one app. A snapshot can be turned back into an in-memory registry so queries can be replayed
without a device.
*/

package inventory

import (
	"time"

	"github.com/kleascm/droidquery/pkg/appinfo"
	"github.com/kleascm/droidquery/pkg/mobile"
)

// PackageEntry is one installed package
type PackageEntry struct {
	Name  string `json:"name"`
	Label string `json:"label,omitempty"`
}

// SnapshotError is a query failure captured during collection
type SnapshotError struct {
	Op    string `json:"op"`
	Error string `json:"error"`
}

// Snapshot is the collected state of a device and its caller app
type Snapshot struct {
	ID        string             `json:"id"`
	CreatedAt time.Time          `json:"created_at"`
	Device    *mobile.DeviceInfo `json:"device,omitempty"`
	Caller    *appinfo.Caller    `json:"caller,omitempty"`

	Package      *appinfo.PackageRecord `json:"package,omitempty"`
	AppName      string                 `json:"app_name,omitempty"`
	Debuggable   bool                   `json:"debuggable"`
	InBackground bool                   `json:"in_background"`
	Cached       bool                   `json:"cached"`
	Launcher     *appinfo.ResolveInfo   `json:"launcher,omitempty"`

	Foreground     appinfo.ComponentName   `json:"foreground"`
	StorageMounted bool                    `json:"storage_mounted"`
	HasBrowser     bool                    `json:"has_browser"`
	Browsers       []appinfo.ResolveInfo   `json:"browsers,omitempty"`
	Processes      []appinfo.ProcessRecord `json:"processes"`
	Packages       []PackageEntry          `json:"packages"`

	Errors []SnapshotError `json:"errors,omitempty"`
}

// Failed reports whether op failed during collection
func (s *Snapshot) Failed(op string) bool {
	for _, e := range s.Errors {
		if e.Op == op {
			return true
		}
	}
	return false
}

// Registry rebuilds the device state the snapshot describes
func (s *Snapshot) Registry() *appinfo.MemoryRegistry {
	reg := appinfo.NewMemoryRegistry()
	reg.Processes = append(reg.Processes, s.Processes...)
	reg.Top = s.Foreground
	if !s.StorageMounted {
		reg.StorageState = appinfo.StorageUnmounted
	}

	for _, p := range s.Packages {
		reg.AddPackage(&appinfo.PackageRecord{
			PackageName:     p.Name,
			ApplicationInfo: appinfo.ApplicationInfo{Label: p.Label},
		})
	}
	if s.Package != nil {
		reg.AddPackage(s.Package)
	}

	if s.Launcher != nil {
		reg.Handlers = append(reg.Handlers, appinfo.IntentHandler{
			Activity: s.Launcher.Activity,
			Filter: appinfo.IntentFilter{
				Actions:    []string{appinfo.ActionMain},
				Categories: []string{appinfo.CategoryLauncher},
			},
		})
	}
	for _, b := range s.Browsers {
		reg.Handlers = append(reg.Handlers, appinfo.IntentHandler{
			Activity: b.Activity,
			Filter: appinfo.IntentFilter{
				Actions:    []string{appinfo.ActionView},
				Categories: []string{appinfo.CategoryBrowsable, appinfo.CategoryDefault},
				Schemes:    []string{"http", "https"},
			},
		})
	}
	return reg
}
