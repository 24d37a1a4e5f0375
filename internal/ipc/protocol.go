package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/SoarinFerret/FocusWarden/internal/engine"
	"github.com/SoarinFerret/FocusWarden/internal/session"
	"github.com/SoarinFerret/FocusWarden/internal/state"
	"github.com/SoarinFerret/FocusWarden/internal/store"
)

const (
	ObjectPath    = "/io/github/soarinferret/focuswarden"
	InterfaceName = "io.github.soarinferret.focuswarden.Manager"
	ServiceName   = "io.github.soarinferret.focuswarden"

	ErrNameNoFocusSession = InterfaceName + ".NoFocusSession"
	ErrNameNotFound       = InterfaceName + ".NotFound"
)

// Store is the persistence the control service exposes.
type Store interface {
	Patterns(list store.List) ([]string, error)
	AddPattern(list store.List, pattern string) (bool, error)
	RemovePattern(list store.List, pattern string) error
	CompletedTasksInRange(start, end time.Time) ([]session.CompletedTask, error)
}

// FocusManager is exported on D-Bus for fwctl.
type FocusManager struct {
	Engine *engine.Engine
	Store  Store
}

// Export claims ServiceName on conn and exports m at ObjectPath.
func Export(conn *dbus.Conn, m *FocusManager) error {
	reply, err := conn.RequestName(ServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return errors.New("name already taken: " + ServiceName)
	}
	return conn.Export(m, dbus.ObjectPath(ObjectPath), InterfaceName)
}

func toDBusError(err error) *dbus.Error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, state.ErrNoFocusSession):
		return dbus.NewError(ErrNameNoFocusSession, []interface{}{err.Error()})
	case errors.Is(err, store.ErrNotFound):
		return dbus.NewError(ErrNameNotFound, []interface{}{err.Error()})
	default:
		return dbus.MakeFailedError(err)
	}
}

func marshal(v any) (string, *dbus.Error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	return string(data), nil
}

// GetStatus returns the engine status as JSON.
func (m *FocusManager) GetStatus() (string, *dbus.Error) {
	return marshal(m.Engine.Status())
}

// GetFocus returns the current session as JSON, or "null".
func (m *FocusManager) GetFocus() (string, *dbus.Error) {
	return marshal(m.Engine.State().Focus())
}

// StartFocus starts a session with no origin tab.
func (m *FocusManager) StartFocus(description string, keywords []string) (string, *dbus.Error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return "", dbus.MakeFailedError(errors.New("description is required"))
	}
	started := m.Engine.StartFocus(context.Background(), engine.StartRequest{
		Description: description,
		Keywords:    keywords,
	})
	return marshal(started)
}

func (m *FocusManager) EndFocus() (bool, *dbus.Error) {
	_, ended := m.Engine.EndFocus()
	return ended, nil
}

func (m *FocusManager) CompleteFocus() (string, *dbus.Error) {
	task, ok, err := m.Engine.CompleteFocus()
	if err != nil {
		return "", toDBusError(err)
	}
	if !ok {
		return "", toDBusError(state.ErrNoFocusSession)
	}
	return marshal(task)
}

func (m *FocusManager) ReturnToFocus() *dbus.Error {
	return toDBusError(m.Engine.ReturnToFocus(context.Background()))
}

func (m *FocusManager) AddBlacklist(pattern string) (bool, *dbus.Error) {
	return m.addPattern(store.Blacklist, pattern)
}

func (m *FocusManager) RemoveBlacklist(pattern string) *dbus.Error {
	return toDBusError(m.Store.RemovePattern(store.Blacklist, pattern))
}

func (m *FocusManager) ListBlacklist() ([]string, *dbus.Error) {
	return m.patterns(store.Blacklist)
}

func (m *FocusManager) AddWhitelist(pattern string) (bool, *dbus.Error) {
	return m.addPattern(store.Whitelist, pattern)
}

func (m *FocusManager) RemoveWhitelist(pattern string) *dbus.Error {
	return toDBusError(m.Store.RemovePattern(store.Whitelist, pattern))
}

func (m *FocusManager) ListWhitelist() ([]string, *dbus.Error) {
	return m.patterns(store.Whitelist)
}

func (m *FocusManager) addPattern(list store.List, pattern string) (bool, *dbus.Error) {
	if strings.TrimSpace(pattern) == "" {
		return false, dbus.MakeFailedError(errors.New("pattern is required"))
	}
	added, err := m.Store.AddPattern(list, pattern)
	return added, toDBusError(err)
}

func (m *FocusManager) patterns(list store.List) ([]string, *dbus.Error) {
	patterns, err := m.Store.Patterns(list)
	if err != nil {
		return nil, toDBusError(err)
	}
	if patterns == nil {
		patterns = []string{}
	}
	return patterns, nil
}

// CompletedTasks returns the tasks completed in the last days days as JSON.
func (m *FocusManager) CompletedTasks(days int32) (string, *dbus.Error) {
	if days <= 0 {
		days = 7
	}
	end := time.Now()
	tasks, err := m.Store.CompletedTasksInRange(end.AddDate(0, 0, -int(days)), end)
	if err != nil {
		return "", toDBusError(err)
	}
	if tasks == nil {
		tasks = []session.CompletedTask{}
	}
	return marshal(tasks)
}
