/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: apk_analyzer.go
Description: APKAnalyzer reads package facts that dumpsys does not print. Badging (label,
launchable activity, permissions) comes from `aapt dump badging`, manifest meta-data from
`aapt dump xmltree` or from a decoded AndroidManifest.xml.
*/

package mobile

import (
	"bufio"
	"context"
	"encoding/xml"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/kleascm/droidquery/pkg/appinfo"
	"github.com/pkg/errors"
)

// APKAnalyzer runs aapt on the host
type APKAnalyzer struct {
	aaptPath string
	runner   CommandRunner
}

func NewAPKAnalyzer(aaptPath string, runner CommandRunner) *APKAnalyzer {
	if aaptPath == "" {
		aaptPath = "aapt"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &APKAnalyzer{aaptPath: aaptPath, runner: runner}
}

// Badging is the summary printed by `aapt dump badging`
type Badging struct {
	PackageName        string   `json:"package_name"`
	VersionName        string   `json:"version_name"`
	VersionCode        int64    `json:"version_code"`
	Label              string   `json:"label"`
	LaunchableActivity string   `json:"launchable_activity"`
	Permissions        []string `json:"permissions"`
}

// Badging dumps the badging of apkPath
func (a *APKAnalyzer) Badging(ctx context.Context, apkPath string) (*Badging, error) {
	output, err := a.runner.Run(ctx, a.aaptPath, "dump", "badging", apkPath)
	if err != nil {
		return nil, errors.Wrapf(err, "aapt badging failed, output: %s", strings.TrimSpace(string(output)))
	}
	return ParseBadging(string(output)), nil
}

// ParseBadging parses `aapt dump badging` output
func ParseBadging(output string) *Badging {
	badging := &Badging{}
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "package: "):
			for _, f := range strings.Fields(line) {
				if v, ok := strings.CutPrefix(f, "name="); ok {
					badging.PackageName = strings.Trim(v, "'\"")
				}
				if v, ok := strings.CutPrefix(f, "versionName="); ok {
					badging.VersionName = strings.Trim(v, "'\"")
				}
				if v, ok := strings.CutPrefix(f, "versionCode="); ok {
					badging.VersionCode, _ = strconv.ParseInt(strings.Trim(v, "'\""), 10, 64)
				}
			}
		case strings.HasPrefix(line, "uses-permission: "):
			perm := strings.TrimPrefix(line, "uses-permission: ")
			perm = strings.TrimPrefix(perm, "name=")
			badging.Permissions = append(badging.Permissions, strings.Trim(perm, "'\""))
		case strings.HasPrefix(line, "launchable-activity: "):
			for _, f := range strings.Fields(line) {
				if v, ok := strings.CutPrefix(f, "name="); ok {
					badging.LaunchableActivity = strings.Trim(v, "'\"")
				}
			}
		case strings.HasPrefix(line, "application-label:"):
			badging.Label = strings.Trim(strings.TrimPrefix(line, "application-label:"), "'\"")
		}
	}
	return badging
}

// ManifestMetaData holds the <meta-data> bundles of a manifest
type ManifestMetaData struct {
	Package     string                       `json:"package"`
	Application map[string]string            `json:"application"`
	Components  map[string]map[string]string `json:"components"`
}

func newManifestMetaData(pkg string) *ManifestMetaData {
	return &ManifestMetaData{
		Package:     pkg,
		Application: make(map[string]string),
		Components:  make(map[string]map[string]string),
	}
}

func componentKey(kind appinfo.ComponentKind, class string) string {
	return kind.String() + ":" + class
}

func (m *ManifestMetaData) add(kind appinfo.ComponentKind, class, key, value string) {
	if kind == appinfo.KindApplication {
		m.Application[key] = value
		return
	}
	k := componentKey(kind, resolveClass(m.Package, class))
	if m.Components[k] == nil {
		m.Components[k] = make(map[string]string)
	}
	m.Components[k][key] = value
}

// Lookup returns the bundle of a component. Application ignores the class.
func (m *ManifestMetaData) Lookup(kind appinfo.ComponentKind, component appinfo.ComponentName) (map[string]string, bool) {
	if kind == appinfo.KindApplication {
		return m.Application, true
	}
	values, ok := m.Components[componentKey(kind, resolveClass(m.Package, component.Class))]
	return values, ok
}

// resolveClass expands ".Main" and "Main" against the manifest package
func resolveClass(pkg, class string) string {
	switch {
	case strings.HasPrefix(class, "."):
		return pkg + class
	case !strings.Contains(class, ".") && class != "":
		return pkg + "." + class
	default:
		return class
	}
}

func kindForTag(tag string) appinfo.ComponentKind {
	switch tag {
	case "application":
		return appinfo.KindApplication
	case "activity", "activity-alias":
		return appinfo.KindActivity
	case "service":
		return appinfo.KindService
	case "receiver":
		return appinfo.KindReceiver
	default:
		return appinfo.KindUnknown
	}
}

// ManifestMetaData dumps the compiled manifest of apkPath and collects its meta-data
func (a *APKAnalyzer) ManifestMetaData(ctx context.Context, apkPath string) (*ManifestMetaData, error) {
	output, err := a.runner.Run(ctx, a.aaptPath, "dump", "xmltree", apkPath, "AndroidManifest.xml")
	if err != nil {
		return nil, errors.Wrapf(err, "aapt xmltree failed, output: %s", strings.TrimSpace(string(output)))
	}
	return ParseXMLTree(string(output)), nil
}

var (
	xmlTreeLineRE = regexp.MustCompile(`^(\s*)([NEA]): (.*)$`)
	xmlTreeAttrRE = regexp.MustCompile(`^([^=(]+)(?:\([^)]*\))?=(.*)$`)
	quotedRE      = regexp.MustCompile(`^"((?:[^"\\]|\\.)*)"`)
	typedRE       = regexp.MustCompile(`^\(type 0x([0-9a-fA-F]+)\)0x([0-9a-fA-F]+)`)
)

type xmlTreeNode struct {
	tag    string
	indent int
	attrs  map[string]string
	parent *xmlTreeNode
}

// ParseXMLTree parses `aapt dump xmltree <apk> AndroidManifest.xml` (aapt and aapt2 layouts)
func ParseXMLTree(output string) *ManifestMetaData {
	var nodes []*xmlTreeNode
	var stack []*xmlTreeNode

	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		m := xmlTreeLineRE.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		indent := len(m[1])
		switch m[2] {
		case "E":
			for len(stack) > 0 && stack[len(stack)-1].indent >= indent {
				stack = stack[:len(stack)-1]
			}
			tag, _, _ := strings.Cut(m[3], " ")
			node := &xmlTreeNode{tag: tag, indent: indent, attrs: make(map[string]string)}
			if len(stack) > 0 {
				node.parent = stack[len(stack)-1]
			}
			stack = append(stack, node)
			nodes = append(nodes, node)
		case "A":
			if len(stack) == 0 {
				continue
			}
			am := xmlTreeAttrRE.FindStringSubmatch(m[3])
			if am == nil {
				continue
			}
			name := am[1]
			if i := strings.LastIndex(name, ":"); i >= 0 {
				name = name[i+1:]
			}
			stack[len(stack)-1].attrs[name] = decodeXMLTreeValue(am[2])
		}
	}

	pkg := ""
	for _, n := range nodes {
		if n.tag == "manifest" {
			pkg = n.attrs["package"]
			break
		}
	}
	meta := newManifestMetaData(pkg)
	for _, n := range nodes {
		if n.tag != "meta-data" || n.parent == nil {
			continue
		}
		kind := kindForTag(n.parent.tag)
		if kind == appinfo.KindUnknown {
			continue
		}
		value, ok := n.attrs["value"]
		if !ok {
			value = n.attrs["resource"]
		}
		meta.add(kind, n.parent.attrs["name"], n.attrs["name"], value)
	}
	return meta
}

func decodeXMLTreeValue(raw string) string {
	raw = strings.TrimSpace(raw)
	if m := quotedRE.FindStringSubmatch(raw); m != nil {
		return strings.ReplaceAll(m[1], `\"`, `"`)
	}
	if m := typedRE.FindStringSubmatch(raw); m != nil {
		typ, _ := strconv.ParseUint(m[1], 16, 32)
		bits, _ := strconv.ParseUint(m[2], 16, 32)
		switch typ {
		case 0x10: // int dec
			return strconv.FormatInt(int64(int32(bits)), 10)
		case 0x11: // int hex
			return "0x" + strconv.FormatUint(bits, 16)
		case 0x12: // boolean
			return strconv.FormatBool(bits != 0)
		case 0x04: // float
			return strconv.FormatFloat(float64(math.Float32frombits(uint32(bits))), 'g', -1, 32)
		default:
			return "0x" + m[2]
		}
	}
	if i := strings.Index(raw, " (Raw"); i >= 0 {
		raw = raw[:i]
	}
	return raw
}

type manifestXML struct {
	XMLName     xml.Name `xml:"manifest"`
	Package     string   `xml:"package,attr"`
	Application struct {
		MetaData   []metaDataXML  `xml:"meta-data"`
		Activities []componentXML `xml:"activity"`
		Aliases    []componentXML `xml:"activity-alias"`
		Services   []componentXML `xml:"service"`
		Receivers  []componentXML `xml:"receiver"`
	} `xml:"application"`
}

type componentXML struct {
	Name     string        `xml:"name,attr"`
	MetaData []metaDataXML `xml:"meta-data"`
}

type metaDataXML struct {
	Name     string `xml:"name,attr"`
	Value    string `xml:"value,attr"`
	Resource string `xml:"resource,attr"`
}

func (m metaDataXML) value() string {
	if m.Value != "" {
		return m.Value
	}
	return m.Resource
}

// ParseManifestXML collects meta-data from a decoded (plain text) AndroidManifest.xml
func ParseManifestXML(data []byte) (*ManifestMetaData, error) {
	var manifest manifestXML
	if err := xml.Unmarshal(data, &manifest); err != nil {
		return nil, errors.Wrap(err, "xml unmarshal failed")
	}

	meta := newManifestMetaData(manifest.Package)
	for _, md := range manifest.Application.MetaData {
		meta.add(appinfo.KindApplication, "", md.Name, md.value())
	}
	groups := []struct {
		kind       appinfo.ComponentKind
		components []componentXML
	}{
		{appinfo.KindActivity, manifest.Application.Activities},
		{appinfo.KindActivity, manifest.Application.Aliases},
		{appinfo.KindService, manifest.Application.Services},
		{appinfo.KindReceiver, manifest.Application.Receivers},
	}
	for _, g := range groups {
		for _, c := range g.components {
			for _, md := range c.MetaData {
				meta.add(g.kind, c.Name, md.Name, md.value())
			}
		}
	}
	return meta, nil
}

// LoadManifestFile parses a decoded AndroidManifest.xml from disk
func LoadManifestFile(path string) (*ManifestMetaData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read manifest")
	}
	return ParseManifestXML(data)
}
