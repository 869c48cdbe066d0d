package main

import (
	"github.com/ayusman/gesturecast/internal/app"
	"github.com/spf13/cobra"
)

var runOpts struct {
	server    string
	listen    string
	camera    int
	autostart bool
	tray      bool
	rawLog    bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Capture hands and stream them to the classification service",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		if flags.Changed("server") {
			cfg.ServerURL = runOpts.server
		}
		if flags.Changed("listen") {
			cfg.Listen = runOpts.listen
		}
		if flags.Changed("camera") {
			cfg.Camera.DeviceID = runOpts.camera
		}
		if flags.Changed("autostart") {
			cfg.Autostart = runOpts.autostart
		}
		if flags.Changed("tray") {
			cfg.Tray = runOpts.tray
		}
		if flags.Changed("raw-log") {
			cfg.RawLog.Enabled = runOpts.rawLog
		}

		a, err := app.New(cfg, app.Options{ConfigPath: cfgPath})
		if err != nil {
			return err
		}
		return a.Run(cmd.Context())
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.server, "server", "", "classification service origin (overrides server_url)")
	f.StringVar(&runOpts.listen, "listen", "", "viewer address, empty disables (overrides listen)")
	f.IntVar(&runOpts.camera, "camera", 0, "camera device id")
	f.BoolVar(&runOpts.autostart, "autostart", false, "start the camera immediately")
	f.BoolVar(&runOpts.tray, "tray", false, "show the system tray icon")
	f.BoolVar(&runOpts.rawLog, "raw-log", false, "record service traffic")
	rootCmd.AddCommand(runCmd)
}
