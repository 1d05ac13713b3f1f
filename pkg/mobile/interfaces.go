/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: interfaces.go
Description: Core types for talking to Android devices over ADB. Defines the command runner
seam used to execute adb/aapt, the device descriptors returned by `adb devices` and getprop,
and the DeviceController interface implemented by AndroidDeviceController.
*/

package mobile

import (
	"context"
	"os/exec"
)

// CommandRunner executes a host binary and returns its combined output
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

// Run executes name with args, honoring ctx cancellation
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Device is one entry of `adb devices -l`
type Device struct {
	Serial      string `json:"serial"`
	State       string `json:"state"`
	Product     string `json:"product,omitempty"`
	Model       string `json:"model,omitempty"`
	Device      string `json:"device,omitempty"`
	TransportID string `json:"transport_id,omitempty"`
}

// Online reports whether the device accepts shell commands
func (d Device) Online() bool {
	return d.State == "device"
}

// DeviceInfo summarises getprop output
type DeviceInfo struct {
	Serial       string            `json:"serial"`
	Manufacturer string            `json:"manufacturer"`
	Model        string            `json:"model"`
	Release      string            `json:"release"`
	SDK          int               `json:"sdk"`
	ABI          string            `json:"abi"`
	Fingerprint  string            `json:"fingerprint"`
	Properties   map[string]string `json:"-"`
}

// DeviceController manages a device over ADB
type DeviceController interface {
	Serial() string
	WaitForDevice(ctx context.Context) error
	Devices(ctx context.Context) ([]Device, error)
	Shell(ctx context.Context, args ...string) (string, error)
	Pull(ctx context.Context, remote, local string) error
	Forward(ctx context.Context, local, remote string) error
	RemoveForward(ctx context.Context, local string) error
	GetDeviceInfo(ctx context.Context) (*DeviceInfo, error)
}
