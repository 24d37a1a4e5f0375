package notify

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/godbus/dbus/v5"
)

const sessionBusEnv = "DBUS_SESSION_BUS_ADDRESS"

// ConnectUserBus connects to the desktop session bus. When the daemon was
// started without DBUS_SESSION_BUS_ADDRESS (e.g. from a system unit), the
// address is read from the environment of pid's logind session leader.
func ConnectUserBus(system *dbus.Conn, pid int) (*dbus.Conn, error) {
	if os.Getenv(sessionBusEnv) != "" {
		return dbus.ConnectSessionBus()
	}
	if system == nil {
		return nil, fmt.Errorf("%s is not set and no system bus is available", sessionBusEnv)
	}

	addr, err := sessionBusAddress(system, pid)
	if err != nil {
		return nil, fmt.Errorf("failed to get session bus address: %w", err)
	}

	conn, err := dbus.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to user session bus: %w", err)
	}
	if err := conn.Auth(nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	if err := conn.Hello(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send hello: %w", err)
	}
	return conn, nil
}

// sessionBusAddress finds the logind session of pid and reads the bus
// address from its leader's environment.
func sessionBusAddress(system *dbus.Conn, pid int) (string, error) {
	login := system.Object("org.freedesktop.login1", "/org/freedesktop/login1")

	var sessionPath dbus.ObjectPath
	if err := login.Call("org.freedesktop.login1.Manager.GetSessionByPID", 0, uint32(pid)).Store(&sessionPath); err != nil {
		return "", fmt.Errorf("failed to get session for pid %d: %w", pid, err)
	}

	leader, err := system.Object("org.freedesktop.login1", sessionPath).GetProperty("org.freedesktop.login1.Session.Leader")
	if err != nil {
		return "", fmt.Errorf("failed to get Leader property: %w", err)
	}
	leaderPID, ok := leader.Value().(uint32)
	if !ok {
		return "", fmt.Errorf("unexpected type for session leader")
	}
	return getEnvFromProc(int(leaderPID), sessionBusEnv)
}

// getEnvFromProc reads an environment variable from /proc/<pid>/environ
func getEnvFromProc(pid int, envVar string) (string, error) {
	path := fmt.Sprintf("/proc/%d/environ", pid)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return lookupEnv(data, envVar)
}

// lookupEnv finds envVar in a NUL-separated key=value block.
func lookupEnv(environ []byte, envVar string) (string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(environ))
	scanner.Split(scanNullTerminated)

	for scanner.Scan() {
		if value, ok := strings.CutPrefix(scanner.Text(), envVar+"="); ok {
			return value, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("error scanning environ: %w", err)
	}
	return "", fmt.Errorf("environment variable %s not found", envVar)
}

// scanNullTerminated is a bufio.SplitFunc that splits on NUL bytes.
func scanNullTerminated(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
