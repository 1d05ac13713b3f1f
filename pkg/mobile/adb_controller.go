/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: adb_controller.go
Description: AndroidDeviceController drives one device through the adb binary. Every call goes
through exec.CommandContext with a per-command timeout, failures carry the command line and
its output, and device discovery, getprop, port forwarding, file pulls and pid lookup are
provided on top of the raw shell.
*/

package mobile

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/kleascm/droidquery/pkg/appinfo"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultCommandTimeout bounds a single adb invocation
const DefaultCommandTimeout = 15 * time.Second

// ErrNoDevice indicates no online device is attached
var ErrNoDevice = errors.New("no online android device")

// ControllerConfig configures an AndroidDeviceController
type ControllerConfig struct {
	ADBPath string
	Serial  string
	Timeout time.Duration
	Runner  CommandRunner
	Logger  logrus.FieldLogger
	// OnCommand replaces the built-in debug logging of each adb invocation
	OnCommand func(command string, duration time.Duration, err error)
}

// AndroidDeviceController implements DeviceController via ADB
type AndroidDeviceController struct {
	adbPath string
	serial  string
	timeout time.Duration
	runner  CommandRunner
	logger  logrus.FieldLogger
	observe func(command string, duration time.Duration, err error)
}

func NewAndroidDeviceController(config ControllerConfig) *AndroidDeviceController {
	c := &AndroidDeviceController{
		adbPath: config.ADBPath,
		serial:  config.Serial,
		timeout: config.Timeout,
		runner:  config.Runner,
		logger:  config.Logger,
		observe: config.OnCommand,
	}
	if c.adbPath == "" {
		if path, err := FindADB(); err == nil {
			c.adbPath = path
		} else {
			c.adbPath = "adb"
		}
	}
	if c.timeout <= 0 {
		c.timeout = DefaultCommandTimeout
	}
	if c.runner == nil {
		c.runner = ExecRunner{}
	}
	if c.logger == nil {
		c.logger = logrus.StandardLogger()
	}
	return c
}

// FindADB locates the adb binary in the Android SDK or on PATH
func FindADB() (string, error) {
	name := "adb"
	if runtime.GOOS == "windows" {
		name = "adb.exe"
	}
	for _, env := range []string{"ANDROID_HOME", "ANDROID_SDK_ROOT"} {
		if root := os.Getenv(env); root != "" {
			candidate := filepath.Join(root, "platform-tools", name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", errors.Wrap(err, "adb not found in ANDROID_HOME, ANDROID_SDK_ROOT or PATH")
	}
	return path, nil
}

func (c *AndroidDeviceController) Serial() string {
	return c.serial
}

// UseSerial binds the controller to another device
func (c *AndroidDeviceController) UseSerial(serial string) {
	c.serial = serial
}

// Run executes adb with args against the bound device
func (c *AndroidDeviceController) Run(ctx context.Context, args ...string) (string, error) {
	if c.serial != "" {
		args = append([]string{"-s", c.serial}, args...)
	}
	return c.exec(ctx, args...)
}

func (c *AndroidDeviceController) exec(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	output, err := c.runner.Run(ctx, c.adbPath, args...)
	command := strings.Join(args, " ")
	c.logCommand(command, time.Since(start), err)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return string(output), errors.Wrapf(ctx.Err(), "adb %s timed out after %s", command, c.timeout)
		}
		return string(output), errors.Wrapf(err, "adb %s failed, output: %s", command, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

func (c *AndroidDeviceController) logCommand(command string, duration time.Duration, err error) {
	if c.observe != nil {
		c.observe(command, duration, err)
		return
	}
	entry := c.logger.WithFields(logrus.Fields{
		"command":  command,
		"duration": duration.String(),
	})
	if err != nil {
		entry.WithError(err).Debug("adb command failed")
		return
	}
	entry.Debug("adb command")
}

// Shell runs a shell command on the device
func (c *AndroidDeviceController) Shell(ctx context.Context, args ...string) (string, error) {
	return c.Run(ctx, append([]string{"shell"}, args...)...)
}

// WaitForDevice blocks until the device is reachable or ctx ends
func (c *AndroidDeviceController) WaitForDevice(ctx context.Context) error {
	args := []string{"wait-for-device"}
	if c.serial != "" {
		args = append([]string{"-s", c.serial}, args...)
	}
	_, err := c.runner.Run(ctx, c.adbPath, args...)
	if err != nil {
		return errors.Wrap(err, "wait-for-device failed")
	}
	return nil
}

// Devices lists attached devices regardless of the bound serial
func (c *AndroidDeviceController) Devices(ctx context.Context) ([]Device, error) {
	output, err := c.exec(ctx, "devices", "-l")
	if err != nil {
		return nil, err
	}
	return ParseDevices(output), nil
}

// AutoSelect binds the controller to the only online device when no serial is set
func (c *AndroidDeviceController) AutoSelect(ctx context.Context) error {
	if c.serial != "" {
		return nil
	}
	devices, err := c.Devices(ctx)
	if err != nil {
		return err
	}
	var online []Device
	for _, d := range devices {
		if d.Online() {
			online = append(online, d)
		}
	}
	switch len(online) {
	case 0:
		return ErrNoDevice
	case 1:
		c.serial = online[0].Serial
		c.logger.WithField("serial", c.serial).Info("Selected device")
		return nil
	default:
		return errors.Errorf("%d devices online, choose one with --serial", len(online))
	}
}

func (c *AndroidDeviceController) Pull(ctx context.Context, remote, local string) error {
	_, err := c.Run(ctx, "pull", remote, local)
	return err
}

func (c *AndroidDeviceController) Forward(ctx context.Context, local, remote string) error {
	_, err := c.Run(ctx, "forward", local, remote)
	return err
}

func (c *AndroidDeviceController) RemoveForward(ctx context.Context, local string) error {
	_, err := c.Run(ctx, "forward", "--remove", local)
	return err
}

// GetDeviceInfo reads the device properties
func (c *AndroidDeviceController) GetDeviceInfo(ctx context.Context) (*DeviceInfo, error) {
	output, err := c.Shell(ctx, "getprop")
	if err != nil {
		return nil, err
	}
	info := NewDeviceInfo(ParseGetprop(output))
	if info.Serial == "" {
		info.Serial = c.serial
	}
	return info, nil
}

// PIDOf returns the pid of the process named packageName, or 0 when it is not running
func (c *AndroidDeviceController) PIDOf(ctx context.Context, packageName string) (int, error) {
	output, err := c.Shell(ctx, "pidof", packageName)
	if err == nil {
		return ParsePIDOf(output), nil
	}
	// pidof exits 1 when nothing matches and is missing on old releases
	output, psErr := c.Shell(ctx, "ps")
	if psErr != nil {
		return 0, psErr
	}
	for _, p := range ParsePS(output) {
		if p.Name == packageName {
			return p.PID, nil
		}
	}
	return 0, nil
}

// ResolveCaller builds the caller identity for packageName, looking up its pid when pid is 0
func (c *AndroidDeviceController) ResolveCaller(ctx context.Context, packageName string, pid int) (*appinfo.Caller, error) {
	caller := &appinfo.Caller{PackageName: packageName, PID: pid}
	if pid != 0 || packageName == "" {
		return caller, nil
	}
	found, err := c.PIDOf(ctx, packageName)
	if err != nil {
		return nil, err
	}
	if found == 0 {
		c.logger.WithField("package", packageName).Debug("Package is not running")
	}
	caller.PID = found
	return caller, nil
}
