/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: browser.go
Description: Browser command. Reports whether a web browser is installed and can attach to
the device browser over DevTools to read its version and load a page.
*/

package commands

import (
	"context"
	"fmt"

	"github.com/kleascm/droidquery/pkg/browser"
	"github.com/spf13/cobra"
)

var (
	browserProbe    bool
	browserProbeURL string
)

func init() {
	BrowserCmd.Flags().BoolVar(&browserProbe, "probe", false, "Attach to the browser over DevTools and print its version")
	BrowserCmd.Flags().StringVar(&browserProbeURL, "probe-url", "", "Load this URL in the device browser and summarise the page (implies --probe)")
}

// BrowserCmd reports browser presence
var BrowserCmd = &cobra.Command{
	Use:   "browser",
	Short: "Report whether a web browser is installed",
	Long: `Report whether any activity handles a browsable http:// VIEW intent. With --probe
the browser's DevTools socket is forwarded and chromedp attaches to it. The browser must be
running with remote debugging enabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s *Session) error {
			var has bool
			if err := s.Run("HasBrowser", "", func() (interface{}, error) {
				var err error
				if s.Lenient != nil {
					has = s.Lenient.HasBrowser(ctx)
				} else {
					has, err = s.Query.HasBrowser(ctx)
				}
				return has, err
			}); err != nil {
				return err
			}

			if !browserProbe && browserProbeURL == "" {
				return nil
			}
			if !has {
				return fmt.Errorf("no browser to probe")
			}
			if err := s.requireDevice("browser --probe"); err != nil {
				return err
			}

			bc := s.Config.Browser
			prober := browser.NewProber(s.Controller, browser.ProbeConfig{
				Port:    bc.Port,
				Socket:  bc.Socket,
				Timeout: bc.Timeout,
			}, s.Log)
			result, err := prober.Probe(ctx, browserProbeURL)
			if err != nil {
				return err
			}
			return s.Print(result)
		})
	},
}
