/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: probe.go
Description: DevTools probe of the device browser. Forwards the browser's abstract DevTools
socket to a local port, attaches chromedp with a remote allocator, reads the browser version and
optionally loads a page while collecting network events. The loaded DOM is summarised with goquery.
*/

package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// Forwarder sets up adb port forwards
type Forwarder interface {
	Forward(ctx context.Context, local, remote string) error
	RemoveForward(ctx context.Context, local string) error
}

// ProbeConfig selects the forwarded socket and bounds the whole probe
type ProbeConfig struct {
	Port    int           `json:"port"`
	Socket  string        `json:"socket"`
	Timeout time.Duration `json:"timeout"`
}

// DefaultProbeConfig targets Chrome's DevTools socket
func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		Port:    9222,
		Socket:  "chrome_devtools_remote",
		Timeout: 20 * time.Second,
	}
}

// ProbeResult is what a probe learned about the browser
type ProbeResult struct {
	Product         string       `json:"product"`
	Revision        string       `json:"revision"`
	UserAgent       string       `json:"user_agent"`
	JSVersion       string       `json:"js_version"`
	ProtocolVersion string       `json:"protocol_version"`
	Page            *PageSummary `json:"page,omitempty"`
	Network         []string     `json:"network,omitempty"`
}

// Prober attaches to the device browser over a forwarded port
type Prober struct {
	forwarder Forwarder
	config    ProbeConfig
	logger    logrus.FieldLogger

	netMu   sync.Mutex
	netlogs []string
}

func NewProber(forwarder Forwarder, config ProbeConfig, logger logrus.FieldLogger) *Prober {
	defaults := DefaultProbeConfig()
	if config.Port <= 0 {
		config.Port = defaults.Port
	}
	if config.Socket == "" {
		config.Socket = defaults.Socket
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Prober{forwarder: forwarder, config: config, logger: logger}
}

func (p *Prober) localSpec() string {
	return fmt.Sprintf("tcp:%d", p.config.Port)
}

// Probe reads the browser version and, when pageURL is set, loads it and summarises the page.
// The port forward is removed before returning.
func (p *Prober) Probe(ctx context.Context, pageURL string) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	local := p.localSpec()
	if err := p.forwarder.Forward(ctx, local, "localabstract:"+p.config.Socket); err != nil {
		return nil, fmt.Errorf("failed to forward devtools socket: %w", err)
	}
	defer func() {
		// ctx may already be done here
		if err := p.forwarder.RemoveForward(context.Background(), local); err != nil {
			p.logger.WithError(err).Warn("Failed to remove devtools forward")
		}
	}()

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, fmt.Sprintf("ws://127.0.0.1:%d", p.config.Port))
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	p.netMu.Lock()
	p.netlogs = nil
	p.netMu.Unlock()
	chromedp.ListenTarget(browserCtx, p.record)

	result := &ProbeResult{}
	err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		result.ProtocolVersion, result.Product, result.Revision, result.UserAgent, result.JSVersion, err = browser.GetVersion().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read browser version: %w", err)
	}
	p.logger.WithFields(logrus.Fields{
		"product":  result.Product,
		"protocol": result.ProtocolVersion,
	}).Debug("Attached to device browser")

	if pageURL == "" {
		return result, nil
	}

	var dom string
	if err := chromedp.Run(browserCtx,
		network.Enable(),
		chromedp.Navigate(pageURL),
		chromedp.OuterHTML("html", &dom),
	); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", pageURL, err)
	}

	page, err := Summarize(pageURL, dom)
	if err != nil {
		return nil, err
	}
	result.Page = page
	result.Network = p.NetworkLog()
	return result, nil
}

// record collects network events of the attached target
func (p *Prober) record(ev interface{}) {
	var line string
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		line = fmt.Sprintf("[REQ] %s %s", e.Request.Method, e.Request.URL)
	case *network.EventResponseReceived:
		line = fmt.Sprintf("[RES] %d %s", e.Response.Status, e.Response.URL)
	case *network.EventLoadingFailed:
		line = fmt.Sprintf("[ERR] %s %s", e.ErrorText, e.RequestID.String())
	default:
		return
	}
	p.netMu.Lock()
	p.netlogs = append(p.netlogs, line)
	p.netMu.Unlock()
}

// NetworkLog returns the network events of the last probe
func (p *Prober) NetworkLog() []string {
	p.netMu.Lock()
	defer p.netMu.Unlock()
	out := make([]string, len(p.netlogs))
	copy(out, p.netlogs)
	return out
}
