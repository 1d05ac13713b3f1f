/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: adb_controller_test.go
Description: Tests for AndroidDeviceController using a recording command runner.
*/

package mobile_test

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/kleascm/droidquery/pkg/mobile"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	calls   []string
	outputs map[string]string
	errs    map[string]error
}

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{outputs: make(map[string]string), errs: make(map[string]error)}
}

func (r *recordingRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := strings.Join(args, " ")
	r.calls = append(r.calls, name+" "+cmd)
	return []byte(r.outputs[cmd]), r.errs[cmd]
}

func newTestController(runner mobile.CommandRunner, serial string) *mobile.AndroidDeviceController {
	logger, _ := test.NewNullLogger()
	return mobile.NewAndroidDeviceController(mobile.ControllerConfig{
		ADBPath: "/sdk/platform-tools/adb",
		Serial:  serial,
		Runner:  runner,
		Logger:  logger,
	})
}

func TestControllerShellUsesSerial(t *testing.T) {
	runner := newRecordingRunner()
	runner.outputs["-s emulator-5554 shell echo hi"] = "hi\n"
	c := newTestController(runner, "emulator-5554")

	out, err := c.Shell(context.Background(), "echo", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hi\n", out)
	assert.Equal(t, []string{"/sdk/platform-tools/adb -s emulator-5554 shell echo hi"}, runner.calls)
}

func TestControllerErrorCarriesOutput(t *testing.T) {
	runner := newRecordingRunner()
	runner.outputs["shell pm path com.x"] = "error: closed\n"
	runner.errs["shell pm path com.x"] = errors.New("exit status 1")
	c := newTestController(runner, "")

	_, err := c.Shell(context.Background(), "pm", "path", "com.x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adb shell pm path com.x failed")
	assert.Contains(t, err.Error(), "error: closed")
}

type blockingRunner struct{}

func (blockingRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestControllerTimeout(t *testing.T) {
	logger, _ := test.NewNullLogger()
	c := mobile.NewAndroidDeviceController(mobile.ControllerConfig{
		ADBPath: "adb",
		Timeout: 10 * time.Millisecond,
		Runner:  blockingRunner{},
		Logger:  logger,
	})

	_, err := c.Shell(context.Background(), "dumpsys")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Error(), "timed out")
}

func TestControllerAutoSelect(t *testing.T) {
	runner := newRecordingRunner()
	runner.outputs["devices -l"] = "List of devices attached\nemulator-5554 device product:sdk model:sdk device:emu transport_id:1\nABC unauthorized usb:1-1\n"
	c := newTestController(runner, "")

	require.NoError(t, c.AutoSelect(context.Background()))
	assert.Equal(t, "emulator-5554", c.Serial())

	runner.outputs["devices -l"] = "List of devices attached\n"
	empty := newTestController(runner, "")
	assert.ErrorIs(t, empty.AutoSelect(context.Background()), mobile.ErrNoDevice)

	runner.outputs["devices -l"] = "List of devices attached\na device\nb device\n"
	many := newTestController(runner, "")
	err := many.AutoSelect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 devices online")
}

func TestControllerGetDeviceInfo(t *testing.T) {
	runner := newRecordingRunner()
	runner.outputs["-s emulator-5554 shell getprop"] = "[ro.product.model]: [sdk_gphone64]\n[ro.build.version.sdk]: [33]\n"
	c := newTestController(runner, "emulator-5554")

	info, err := c.GetDeviceInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sdk_gphone64", info.Model)
	assert.Equal(t, 33, info.SDK)
	assert.Equal(t, "emulator-5554", info.Serial, "serial falls back to the bound device")
}

func TestControllerPIDOfFallsBackToPS(t *testing.T) {
	runner := newRecordingRunner()
	runner.errs["shell pidof com.app"] = errors.New("exit status 1")
	runner.outputs["shell ps"] = psOutput
	c := newTestController(runner, "")

	pid, err := c.PIDOf(context.Background(), "com.app")
	require.NoError(t, err)
	assert.Equal(t, 12345, pid)

	caller, err := c.ResolveCaller(context.Background(), "com.app", 0)
	require.NoError(t, err)
	assert.Equal(t, 12345, caller.PID)

	caller, err = c.ResolveCaller(context.Background(), "com.app", 77)
	require.NoError(t, err)
	assert.Equal(t, 77, caller.PID)
}

func TestControllerForward(t *testing.T) {
	runner := newRecordingRunner()
	c := newTestController(runner, "emulator-5554")

	require.NoError(t, c.Forward(context.Background(), "tcp:9222", "localabstract:chrome_devtools_remote"))
	require.NoError(t, c.RemoveForward(context.Background(), "tcp:9222"))
	assert.Equal(t, []string{
		"/sdk/platform-tools/adb -s emulator-5554 forward tcp:9222 localabstract:chrome_devtools_remote",
		"/sdk/platform-tools/adb -s emulator-5554 forward --remove tcp:9222",
	}, runner.calls)
}

func TestControllerOnCommand(t *testing.T) {
	runner := newRecordingRunner()
	runner.errs["-s dev forward tcp:9222 localabstract:chrome_devtools_remote"] = errors.New("exit status 1")

	var seen []string
	c := mobile.NewAndroidDeviceController(mobile.ControllerConfig{
		ADBPath: "adb",
		Serial:  "dev",
		Runner:  runner,
		OnCommand: func(command string, duration time.Duration, err error) {
			seen = append(seen, command+" "+strconv.FormatBool(err != nil))
		},
	})

	_, err := c.Shell(context.Background(), "getprop")
	require.NoError(t, err)
	assert.Error(t, c.Forward(context.Background(), "tcp:9222", "localabstract:chrome_devtools_remote"))
	assert.Equal(t, []string{
		"-s dev shell getprop false",
		"-s dev forward tcp:9222 localabstract:chrome_devtools_remote true",
	}, seen)
}
