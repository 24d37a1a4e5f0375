package loginctl

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
)

// Sleeper is told when the user stops and resumes using the machine.
type Sleeper interface {
	Pause()
	Resume()
}

// Watch follows logind sleep and screen lock signals on the system bus
// until ctx is cancelled.
func Watch(ctx context.Context, s Sleeper, logger *slog.Logger) error {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("failed to connect to system bus: %w", err)
	}
	defer conn.Close()

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath("/org/freedesktop/login1"),
		dbus.WithMatchInterface("org.freedesktop.login1.Manager"),
		dbus.WithMatchMember("PrepareForSleep"),
	); err != nil {
		return fmt.Errorf("add match failed: %w", err)
	}

	// watch for property changes (session locked)
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		return fmt.Errorf("add match for PropertiesChanged failed: %w", err)
	}

	c := make(chan *dbus.Signal, 10)
	conn.Signal(c)
	defer conn.RemoveSignal(c)

	for {
		select {
		case sig := <-c:
			handleSignal(sig, s, logger)
		case <-ctx.Done():
			return nil
		}
	}
}

func handleSignal(sig *dbus.Signal, s Sleeper, logger *slog.Logger) {
	if sig == nil {
		return
	}
	switch sig.Name {
	case "org.freedesktop.login1.Manager.PrepareForSleep":
		if len(sig.Body) == 0 {
			return
		}
		sleeping, _ := sig.Body[0].(bool)
		if sleeping {
			logger.Info("system is going to sleep")
			s.Pause()
		} else {
			logger.Info("system has woken up")
			s.Resume()
		}

	case "org.freedesktop.DBus.Properties.PropertiesChanged":
		if len(sig.Body) < 2 {
			return
		}
		iface, ok := sig.Body[0].(string)
		if !ok || iface != "org.freedesktop.login1.Session" {
			return
		}
		changedProps, ok := sig.Body[1].(map[string]dbus.Variant)
		if !ok {
			return
		}
		val, exists := changedProps["LockedHint"]
		if !exists {
			return
		}
		locked, _ := val.Value().(bool)
		if locked {
			logger.Info("session locked", "session", sig.Path)
			s.Pause()
		} else {
			logger.Info("session unlocked", "session", sig.Path)
			s.Resume()
		}
	}
}
