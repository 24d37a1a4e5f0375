package arg

import (
	"fmt"
	"log"
	"os"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"github.com/SoarinFerret/FocusWarden/internal/ipc"
)

var systemBus bool

var rootCmd = &cobra.Command{
	Use:   "fwctl",
	Short: "fwctl is the command line tool for FocusWarden",
	Long: `fwctl talks to the FocusWarden daemon over D-Bus.
Use it to start and finish focus sessions, check drift status and
manage the blacklist and whitelist.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&systemBus, "system", false, "talk to a daemon on the system bus")
}

// call invokes method on the FocusWarden manager and stores the reply in out.
func call(method string, out []interface{}, args ...interface{}) {
	var (
		conn *dbus.Conn
		err  error
	)
	if systemBus {
		conn, err = dbus.ConnectSystemBus()
	} else {
		conn, err = dbus.ConnectSessionBus()
	}
	if err != nil {
		log.Fatal("Failed to connect to bus:", err)
	}
	defer conn.Close()

	obj := conn.Object(ipc.ServiceName, dbus.ObjectPath(ipc.ObjectPath))
	if err := obj.Call(ipc.InterfaceName+"."+method, 0, args...).Store(out...); err != nil {
		var derr dbus.Error
		if asDBusError(err, &derr) && derr.Name == ipc.ErrNameNoFocusSession {
			log.Fatal("No focus session is active")
		}
		log.Fatalf("Failed to call %s: %v", method, err)
	}
}

func asDBusError(err error, target *dbus.Error) bool {
	switch e := err.(type) {
	case dbus.Error:
		*target = e
		return true
	case *dbus.Error:
		*target = *e
		return true
	}
	return false
}
