/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: registry.go
Description: AndroidRegistry serves the appinfo registry interfaces from a live device. Process
records come from the activity manager LRU list (ps as fallback), the resumed activity from
dumpsys activity, package descriptors from dumpsys package, meta-data from the pulled APK,
intent resolution from cmd package query-activities and storage state from sm list-volumes.
*/

package mobile

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kleascm/droidquery/pkg/appinfo"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Shell is the part of the controller the registry needs
type Shell interface {
	Shell(ctx context.Context, args ...string) (string, error)
	Pull(ctx context.Context, remote, local string) error
}

// RegistryConfig tunes AndroidRegistry
type RegistryConfig struct {
	// Analyzer reads labels and meta-data out of pulled APKs. Nil disables APK pulls.
	Analyzer *APKAnalyzer
	// ManifestPath points at a decoded AndroidManifest.xml used instead of pulling the APK
	ManifestPath string
	// WorkDir receives pulled APKs. Defaults to os.TempDir().
	WorkDir string
	Logger  logrus.FieldLogger
}

// AndroidRegistry implements appinfo.Registry over adb
type AndroidRegistry struct {
	shell        Shell
	analyzer     *APKAnalyzer
	manifestPath string
	workDir      string
	logger       logrus.FieldLogger
}

var _ appinfo.Registry = (*AndroidRegistry)(nil)

func NewAndroidRegistry(shell Shell, config RegistryConfig) *AndroidRegistry {
	r := &AndroidRegistry{
		shell:        shell,
		analyzer:     config.Analyzer,
		manifestPath: config.ManifestPath,
		workDir:      config.WorkDir,
		logger:       config.Logger,
	}
	if r.workDir == "" {
		r.workDir = os.TempDir()
	}
	if r.logger == nil {
		r.logger = logrus.StandardLogger()
	}
	return r
}

// RunningProcesses lists the app processes tracked by the activity manager
func (r *AndroidRegistry) RunningProcesses(ctx context.Context) ([]appinfo.ProcessRecord, error) {
	output, err := r.shell.Shell(ctx, "dumpsys", "activity", "processes")
	if err == nil {
		if records := ParseProcessLRU(output); len(records) > 0 {
			return records, nil
		}
	} else {
		r.logger.WithError(err).Debug("dumpsys activity processes failed, falling back to ps")
	}

	output, err = r.shell.Shell(ctx, "ps", "-A", "-o", "PID,NAME")
	if err != nil || strings.Contains(output, "bad -o") {
		// Toolbox ps on old releases rejects -A/-o
		output, err = r.shell.Shell(ctx, "ps")
		if err != nil {
			return nil, err
		}
	}
	return ParsePS(output), nil
}

// TopActivity returns the resumed activity of the focused task
func (r *AndroidRegistry) TopActivity(ctx context.Context) (appinfo.ComponentName, error) {
	output, err := r.shell.Shell(ctx, "dumpsys", "activity", "activities")
	if err != nil {
		return appinfo.ComponentName{}, err
	}
	if top := ParseResumedActivity(output); !top.IsZero() {
		return top, nil
	}

	output, err = r.shell.Shell(ctx, "dumpsys", "activity", "processes")
	if err != nil {
		return appinfo.ComponentName{}, err
	}
	return ParseResumedActivity(output), nil
}

// Package reads the descriptor of packageName
func (r *AndroidRegistry) Package(ctx context.Context, packageName string) (*appinfo.PackageRecord, error) {
	output, err := r.shell.Shell(ctx, "dumpsys", "package", packageName)
	if err != nil {
		return nil, err
	}
	record := ParsePackageDump(packageName, output)
	if record == nil {
		return nil, errors.Wrapf(appinfo.ErrNotFound, "package %s", packageName)
	}

	if record.ApplicationInfo.Label == "" && r.analyzer != nil {
		if badging, err := r.badging(ctx, packageName); err != nil {
			r.logger.WithError(err).WithField("package", packageName).Debug("Label lookup failed")
		} else {
			record.ApplicationInfo.Label = badging.Label
		}
	}
	return record, nil
}

// ComponentMetaData reads the meta-data bundle of a manifest component
func (r *AndroidRegistry) ComponentMetaData(ctx context.Context, kind appinfo.ComponentKind, component appinfo.ComponentName) (map[string]string, error) {
	meta, err := r.manifestMetaData(ctx, component.Package)
	if err != nil {
		return nil, err
	}
	values, ok := meta.Lookup(kind, component)
	if !ok {
		return nil, errors.Wrapf(appinfo.ErrNotFound, "%s %s", kind, component)
	}
	return values, nil
}

func (r *AndroidRegistry) manifestMetaData(ctx context.Context, packageName string) (*ManifestMetaData, error) {
	if r.manifestPath != "" {
		meta, err := LoadManifestFile(r.manifestPath)
		if err != nil {
			return nil, err
		}
		if meta.Package == packageName {
			return meta, nil
		}
	}
	if r.analyzer == nil {
		return nil, errors.New("meta-data lookup needs aapt or a decoded manifest")
	}

	apk, cleanup, err := r.pullAPK(ctx, packageName)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return r.analyzer.ManifestMetaData(ctx, apk)
}

func (r *AndroidRegistry) badging(ctx context.Context, packageName string) (*Badging, error) {
	apk, cleanup, err := r.pullAPK(ctx, packageName)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return r.analyzer.Badging(ctx, apk)
}

// pullAPK copies the base APK of packageName into the work dir
func (r *AndroidRegistry) pullAPK(ctx context.Context, packageName string) (string, func(), error) {
	output, err := r.shell.Shell(ctx, "pm", "path", packageName)
	if err != nil {
		return "", nil, err
	}
	remote := ParseAPKPath(output)
	if remote == "" {
		return "", nil, errors.Wrapf(appinfo.ErrNotFound, "apk of %s", packageName)
	}

	dir, err := os.MkdirTemp(r.workDir, "droidquery-apk-")
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to create apk work dir")
	}
	cleanup := func() { os.RemoveAll(dir) }

	local := filepath.Join(dir, packageName+".apk")
	if err := r.shell.Pull(ctx, remote, local); err != nil {
		cleanup()
		return "", nil, err
	}
	return local, cleanup, nil
}

// InstalledPackages lists installed package names
func (r *AndroidRegistry) InstalledPackages(ctx context.Context) ([]string, error) {
	output, err := r.shell.Shell(ctx, "pm", "list", "packages")
	if err != nil {
		return nil, err
	}
	return ParsePackageList(output), nil
}

// QueryActivities resolves intent with the package manager
func (r *AndroidRegistry) QueryActivities(ctx context.Context, intent *appinfo.Intent) ([]appinfo.ResolveInfo, error) {
	args := append([]string{"cmd", "package", "query-activities", "--brief"}, intentArgs(intent, false)...)
	if intent.Package != "" {
		args = append(args, intent.Package)
	}
	output, err := r.shell.Shell(ctx, args...)
	if err == nil && !strings.Contains(output, "Unknown command") {
		return ParseQueryActivities(output), nil
	}

	// Releases before 7.0 lack query-activities; the resolver table still lists launchers
	if intent.Action == appinfo.ActionMain && intent.Package != "" {
		dump, dumpErr := r.shell.Shell(ctx, "dumpsys", "package", intent.Package)
		if dumpErr != nil {
			return nil, dumpErr
		}
		return ParseLaunchableActivities(dump), nil
	}
	if err == nil {
		err = errors.Errorf("query-activities unsupported: %s", strings.TrimSpace(output))
	}
	return nil, err
}

// StartActivity sends intent with `am start`
func (r *AndroidRegistry) StartActivity(ctx context.Context, intent *appinfo.Intent) error {
	args := append([]string{"am", "start"}, intentArgs(intent, true)...)
	output, err := r.shell.Shell(ctx, args...)
	if err != nil {
		return err
	}
	if i := strings.Index(output, "Error:"); i >= 0 {
		return errors.Errorf("am start failed: %s", strings.TrimSpace(output[i:]))
	}
	return nil
}

// MoveTaskToFront brings the task of process to the front by re-issuing its launcher intent
func (r *AndroidRegistry) MoveTaskToFront(ctx context.Context, process appinfo.ProcessRecord) error {
	packageName, _, _ := strings.Cut(process.Name, ":")
	output, err := r.shell.Shell(ctx, "monkey", "-p", packageName, "-c", appinfo.CategoryLauncher, "1")
	if err != nil {
		return err
	}
	if strings.Contains(output, "monkey aborted") || strings.Contains(output, "No activities found") {
		return errors.Wrapf(appinfo.ErrNoLauncher, "move %s (pid %d) to front", packageName, process.PID)
	}
	return nil
}

// ExternalStorageState reports the state of the primary external volume
func (r *AndroidRegistry) ExternalStorageState(ctx context.Context) (string, error) {
	output, err := r.shell.Shell(ctx, "sm", "list-volumes")
	if err == nil {
		if state, ok := ParseVolumeState(output); ok {
			return state, nil
		}
	}

	output, err = r.shell.Shell(ctx, "if [ -d /sdcard/ ]; then echo mounted; else echo unmounted; fi")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// intentArgs renders intent as am/cmd package arguments
func intentArgs(intent *appinfo.Intent, withComponent bool) []string {
	var args []string
	if intent.Action != "" {
		args = append(args, "-a", intent.Action)
	}
	for _, c := range intent.Categories {
		args = append(args, "-c", c)
	}
	if intent.Data != "" {
		args = append(args, "-d", intent.Data)
	}
	if withComponent && !intent.Component.IsZero() {
		args = append(args, "-n", intent.Component.ShortString())
	}
	if intent.Flags != 0 {
		args = append(args, "-f", "0x"+strconv.FormatInt(int64(intent.Flags), 16))
	}
	return args
}
