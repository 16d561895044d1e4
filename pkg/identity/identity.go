package identity

import (
	"github.com/benmeehan/beacon-agent/pkg/file"
)

// Identity holds the identifiers stamped on every outgoing message.
type Identity struct {
	DeviceID      string `json:"device_id,omitempty"`
	ApplicationID string `json:"application_id,omitempty"`
}

// DeviceInfoInterface defines methods for reading the device identity.
type DeviceInfoInterface interface {
	LoadDeviceInfo() error
	GetDeviceID() string
	GetApplicationID() string
	GetDeviceIdentity() Identity
}

// DeviceInfo resolves the device identity from configuration, optionally
// overridden by a provisioning file written at flash time.
type DeviceInfo struct {
	DeviceInfoFile string
	Identity       Identity
	fileOps        file.FileOperations
}

// NewDeviceInfo initializes a new DeviceInfo instance with configured defaults.
func NewDeviceInfo(filePath string, defaults Identity, fileOps file.FileOperations) DeviceInfoInterface {
	return &DeviceInfo{
		DeviceInfoFile: filePath,
		fileOps:        fileOps,
		Identity:       defaults,
	}
}

// LoadDeviceInfo overlays non-empty fields from the provisioning file, if present.
func (d *DeviceInfo) LoadDeviceInfo() error {
	if d.DeviceInfoFile == "" {
		return nil
	}

	exists, err := d.fileOps.IsFileExists(d.DeviceInfoFile)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	var provisioned Identity
	if err := d.fileOps.ReadJsonFile(d.DeviceInfoFile, &provisioned); err != nil {
		return err
	}

	if provisioned.DeviceID != "" {
		d.Identity.DeviceID = provisioned.DeviceID
	}
	if provisioned.ApplicationID != "" {
		d.Identity.ApplicationID = provisioned.ApplicationID
	}
	return nil
}

// GetDeviceIdentity returns a copy of the current device Identity.
func (d *DeviceInfo) GetDeviceIdentity() Identity {
	return d.Identity
}

// GetDeviceID returns the current device ID.
func (d *DeviceInfo) GetDeviceID() string {
	return d.Identity.DeviceID
}

// GetApplicationID returns the application (customer) the device reports to.
func (d *DeviceInfo) GetApplicationID() string {
	return d.Identity.ApplicationID
}
