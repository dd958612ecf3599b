// Package device provides the metadata attached to every outgoing event.
package device

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/cuemby/feelback/pkg/storage"
	"github.com/google/uuid"
)

// SDKVersion is reported with every event
const SDKVersion = "0.4.0"

// Info describes the device and app sending telemetry
type Info struct {
	DeviceID   string
	Platform   string
	Arch       string
	OSVersion  string
	AppVersion string
	SDKVersion string
}

// Default describes the current process. OSVersion is left for the host to set.
func Default() Info {
	return Info{
		Platform:   runtime.GOOS,
		Arch:       runtime.GOARCH,
		SDKVersion: SDKVersion,
	}
}

// Resolve fills base.DeviceID from the store, generating and saving a new
// id the first time. When the store cannot be read or written the returned
// Info still carries a usable id and the error is reported alongside.
func Resolve(store storage.Store, base Info) (Info, error) {
	if base.SDKVersion == "" {
		base.SDKVersion = SDKVersion
	}

	data, err := store.Get(storage.KeyDeviceID)
	switch {
	case err == nil && len(data) > 0:
		base.DeviceID = string(data)
		return base, nil
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		base.DeviceID = uuid.New().String()
		return base, fmt.Errorf("failed to read device id: %w", err)
	}

	base.DeviceID = uuid.New().String()
	if err := store.Put(storage.KeyDeviceID, []byte(base.DeviceID)); err != nil {
		return base, fmt.Errorf("failed to save device id: %w", err)
	}
	return base, nil
}

// Context returns the fields merged into event payloads
func (i Info) Context() map[string]any {
	ctx := map[string]any{
		"platform":    i.Platform,
		"sdk_version": i.SDKVersion,
	}
	if i.Arch != "" {
		ctx["arch"] = i.Arch
	}
	if i.OSVersion != "" {
		ctx["os_version"] = i.OSVersion
	}
	if i.AppVersion != "" {
		ctx["app_version"] = i.AppVersion
	}
	return ctx
}
