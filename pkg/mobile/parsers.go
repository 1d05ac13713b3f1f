/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: parsers.go
Description: Parsers for the text printed by adb and the Android shell tools: ps, pidof,
dumpsys activity (process LRU list and resumed activity), dumpsys package, cmd package
query-activities, the launcher blocks of the activity resolver table, sm list-volumes,
pm list packages, getprop and adb devices -l.
*/

package mobile

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"github.com/kleascm/droidquery/pkg/appinfo"
)

var (
	lruEntryRE     = regexp.MustCompile(`^\s*(?:(?:Proc|PERS)\s*)?#\s*\d+:\s+([a-z-]+)[+\s\d]*?\s+\S+\s+.*?\s(\d+):([^/\s]+)/\S+`)
	resumedRE      = regexp.MustCompile(`\b(?:topResumedActivity|mResumedActivity|ResumedActivity)\s*[=:]\s*ActivityRecord\{\S+\s+\S+\s+([^\s}]+)`)
	topActivityRE  = regexp.MustCompile(`\d+:([^/\s]+)/\S+\s+\(top-activity\)`)
	topProcessRE   = regexp.MustCompile(`(?m)^\s*#\s*\d+:\s+fg\s+TOP\s+.*?\s\d+:([^/\s]+)/\S+`)
	packageHeadRE  = regexp.MustCompile(`^\s*Package \[([^\]]+)\]`)
	flagsRE        = regexp.MustCompile(`^\s*(?:flags|pkgFlags)=\[([^\]]*)\]`)
	versionCodeRE  = regexp.MustCompile(`versionCode=(\d+)`)
	versionNameRE  = regexp.MustCompile(`versionName=(\S+)`)
	labelResRE     = regexp.MustCompile(`labelRes=0x([0-9a-fA-F]+)`)
	nonLocalRE     = regexp.MustCompile(`nonLocalizedLabel=(.*?)(?:\s+\w+=|$)`)
	appLabelRE     = regexp.MustCompile(`application-label(?:-[\w-]+)?\s*:\s*'?([^']*)'?`)
	mainActionRE   = regexp.MustCompile(`^\s*` + regexp.QuoteMeta(appinfo.ActionMain) + `:$`)
	categoryNameRE = regexp.MustCompile(`^\s*Category:\s+"([a-zA-Z0-9._/-]+)"$`)
)

// ParsePS parses `ps` or `ps -A -o PID,NAME` output. The NAME column is the last one.
func ParsePS(output string) []appinfo.ProcessRecord {
	var records []appinfo.ProcessRecord
	pidCol := -1
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		if pidCol < 0 {
			for i, f := range fields {
				if f == "PID" {
					pidCol = i
				}
			}
			continue
		}
		if pidCol >= len(fields)-1 {
			continue
		}
		pid, err := strconv.Atoi(fields[pidCol])
		if err != nil {
			continue
		}
		records = append(records, appinfo.ProcessRecord{
			PID:  pid,
			Name: fields[len(fields)-1],
		})
	}
	return records
}

// ParsePIDOf returns the first pid printed by pidof, or 0
func ParsePIDOf(output string) int {
	for _, f := range strings.Fields(output) {
		if pid, err := strconv.Atoi(f); err == nil {
			return pid
		}
	}
	return 0
}

// ImportanceForAdj maps the oom-adj label of a process LRU entry to an importance level
func ImportanceForAdj(label string) appinfo.Importance {
	label = strings.TrimRight(strings.ToLower(label), "+ ")
	switch label {
	case "sys", "pers", "fore", "fg", "top":
		return appinfo.ImportanceForeground
	case "fgs", "fgsvc":
		return appinfo.ImportanceForegroundService
	case "vis":
		return appinfo.ImportanceVisible
	case "prcp", "prcl", "prcm", "prcw", "psvc", "bkup":
		return appinfo.ImportancePerceptible
	case "svc", "svcb", "svcr", "svcl", "sysd":
		return appinfo.ImportanceService
	case "hvy":
		return appinfo.ImportanceCantSaveState
	case "home", "prev", "cch", "cche", "bak", "lstact", "cac", "cch-empty":
		return appinfo.ImportanceBackground
	case "empt":
		return appinfo.ImportanceEmpty
	default:
		return appinfo.ImportanceUnknown
	}
}

// ParseProcessLRU parses the "Process LRU list" of `dumpsys activity processes`.
// Entries are `Proc # N:` / `PERS #N:` before Android 10 and a bare `#N:` after.
func ParseProcessLRU(output string) []appinfo.ProcessRecord {
	var records []appinfo.ProcessRecord
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		m := lruEntryRE.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		pid, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		records = append(records, appinfo.ProcessRecord{
			PID:        pid,
			Name:       m[3],
			Importance: ImportanceForAdj(m[1]),
		})
	}
	return records
}

// ParseResumedActivity extracts the resumed activity from `dumpsys activity activities`.
// Falls back to the top process of the process list, which only names the package: the
// (top-activity) marker before Android 10, the fg/TOP entry after.
func ParseResumedActivity(output string) appinfo.ComponentName {
	if m := resumedRE.FindStringSubmatch(output); m != nil {
		if cn, ok := appinfo.ParseComponentName(m[1]); ok {
			return cn
		}
	}
	if m := topActivityRE.FindStringSubmatch(output); m != nil {
		return appinfo.ComponentName{Package: m[1]}
	}
	if m := topProcessRE.FindStringSubmatch(output); m != nil {
		return appinfo.ComponentName{Package: m[1]}
	}
	return appinfo.ComponentName{}
}

// ParsePackageDump parses `dumpsys package <name>`. Returns nil when the package section is absent.
func ParsePackageDump(packageName, output string) *appinfo.PackageRecord {
	var record *appinfo.PackageRecord
	flagsSeen := false

	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if m := packageHeadRE.FindStringSubmatch(line); m != nil {
			if record != nil {
				// Only the first section belongs to the requested package
				break
			}
			if m[1] != packageName {
				continue
			}
			record = &appinfo.PackageRecord{PackageName: m[1]}
			continue
		}
		if record == nil {
			continue
		}
		if m := versionCodeRE.FindStringSubmatch(line); m != nil && record.VersionCode == 0 {
			record.VersionCode, _ = strconv.ParseInt(m[1], 10, 64)
		}
		if m := versionNameRE.FindStringSubmatch(line); m != nil && record.VersionName == "" {
			record.VersionName = m[1]
		}
		if m := flagsRE.FindStringSubmatch(line); m != nil && !flagsSeen {
			record.ApplicationInfo.Flags = appinfo.ParseApplicationFlags(strings.Fields(m[1])...)
			flagsSeen = true
		}
		if m := labelResRE.FindStringSubmatch(line); m != nil && record.ApplicationInfo.LabelRes == 0 {
			v, _ := strconv.ParseInt(m[1], 16, 64)
			record.ApplicationInfo.LabelRes = int(v)
		}
		if record.ApplicationInfo.Label == "" {
			record.ApplicationInfo.Label = parseLabel(line)
		}
	}
	return record
}

func parseLabel(line string) string {
	if m := appLabelRE.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := nonLocalRE.FindStringSubmatch(line); m != nil {
		label := strings.Trim(strings.TrimSpace(m[1]), "'\"")
		if label != "null" {
			return label
		}
	}
	return ""
}

// ParseQueryActivities parses `cmd package query-activities --brief` output
func ParseQueryActivities(output string) []appinfo.ResolveInfo {
	var matches []appinfo.ResolveInfo
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.ContainsAny(line, " =:") {
			continue
		}
		if cn, ok := appinfo.ParseComponentName(line); ok {
			matches = append(matches, appinfo.ResolveInfo{Activity: cn})
		}
	}
	return matches
}

// ParseLaunchableActivities scans the MAIN blocks of the activity resolver table printed by
// `dumpsys package <name>` and returns the activities declaring the LAUNCHER category.
// On old releases the category lines may be missing, in which case every MAIN activity is kept.
func ParseLaunchableActivities(dump string) []appinfo.ResolveInfo {
	var blocks [][]string
	var block []string
	startIndent := -1

	for _, line := range strings.Split(dump, "\n") {
		line = strings.TrimRight(line, " \r")
		indent := len(line) - len(strings.TrimLeft(line, " "))

		if mainActionRE.MatchString(line) {
			if len(block) > 0 {
				blocks = append(blocks, block)
				block = nil
			}
			startIndent = indent
			continue
		}
		if startIndent < 0 {
			continue
		}
		if indent > startIndent {
			block = append(block, line)
			continue
		}
		if len(block) > 0 {
			blocks = append(blocks, block)
			block = nil
		}
		startIndent = -1
	}
	if len(block) > 0 {
		blocks = append(blocks, block)
	}

	var result []appinfo.ResolveInfo
	for _, b := range blocks {
		hasCategory, launcher := false, false
		for _, line := range b {
			if m := categoryNameRE.FindStringSubmatch(line); m != nil {
				hasCategory = true
				if m[1] == appinfo.CategoryLauncher {
					launcher = true
				}
			}
		}
		if hasCategory && !launcher {
			continue
		}
		for _, line := range b {
			parts := strings.Fields(line)
			if len(parts) < 2 {
				continue
			}
			cn, ok := appinfo.ParseComponentName(parts[1])
			if !ok || !strings.Contains(cn.Class, ".") {
				continue
			}
			result = append(result, appinfo.ResolveInfo{Activity: cn})
		}
	}
	return result
}

// ParseVolumeState returns the state of the primary external volume from `sm list-volumes`.
// The emulated volume wins over public ones.
func ParseVolumeState(output string) (string, bool) {
	var public string
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		switch {
		case strings.HasPrefix(fields[0], "emulated"):
			return fields[1], true
		case strings.HasPrefix(fields[0], "public") && public == "":
			public = fields[1]
		}
	}
	return public, public != ""
}

// ParsePackageList parses `pm list packages`
func ParsePackageList(output string) []string {
	var packages []string
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if name, ok := strings.CutPrefix(line, "package:"); ok && name != "" {
			packages = append(packages, name)
		}
	}
	return packages
}

// ParseAPKPath returns the first (base) apk path printed by `pm path`
func ParseAPKPath(output string) string {
	for _, p := range ParsePackageList(output) {
		if strings.HasSuffix(p, ".apk") {
			return p
		}
	}
	return ""
}

// ParseGetprop parses `[key]: [value]` lines
func ParseGetprop(output string) map[string]string {
	props := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "[") {
			continue
		}
		parts := strings.SplitN(line, ": ", 2)
		if len(parts) == 2 {
			key := strings.Trim(parts[0], "[]")
			val := strings.Trim(parts[1], "[]")
			props[key] = val
		}
	}
	return props
}

// NewDeviceInfo picks the interesting properties out of getprop
func NewDeviceInfo(props map[string]string) *DeviceInfo {
	sdk, _ := strconv.Atoi(props["ro.build.version.sdk"])
	return &DeviceInfo{
		Serial:       props["ro.serialno"],
		Manufacturer: props["ro.product.manufacturer"],
		Model:        props["ro.product.model"],
		Release:      props["ro.build.version.release"],
		SDK:          sdk,
		ABI:          props["ro.product.cpu.abi"],
		Fingerprint:  props["ro.build.fingerprint"],
		Properties:   props,
	}
}

// ParseDevices parses `adb devices -l`, skipping the header and daemon noise
func ParseDevices(output string) []Device {
	var devices []Device
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" ||
			strings.HasPrefix(line, "List of devices") ||
			strings.HasPrefix(line, "*") ||
			strings.Contains(line, "daemon") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		d := Device{Serial: fields[0]}
		rest := fields[1:]
		if !strings.Contains(rest[0], ":") {
			d.State = rest[0]
			rest = rest[1:]
		}
		for _, tok := range rest {
			key, val, ok := strings.Cut(tok, ":")
			if !ok {
				continue
			}
			switch key {
			case "product":
				d.Product = val
			case "model":
				d.Model = val
			case "device":
				d.Device = val
			case "transport_id":
				d.TransportID = val
			}
		}
		devices = append(devices, d)
	}
	return devices
}
