// Package service ties the hardware-control components into one
// long-lived service.
//
// A Service owns:
//   - the settings-driven radio and rotator supervisors
//   - manually connected radios, keyed by device ID
//   - radios found by mDNS browsing, optionally auto-connected
//
// All events from every supervisor go to the configured sink.
//
// Example usage:
//
//	svc := service.New(service.Config{
//		Settings: settings.NewFileSource("settings.yaml"),
//		Sink:     hub,
//		Logger:   logger,
//	})
//	svc.Start(ctx)
//	defer svc.Stop()
//
//	id, err := svc.ConnectRadio(ctx, "192.168.1.5", 4532, "IC-7300")
//	err = svc.SetRotatorTarget(ctx, 285)
package service
