//go:build windows

package preflight

import (
	"path/filepath"
	"strings"

	"golang.org/x/sys/windows"
)

// VolumeCharacteristics describes properties of the drive backing a path
// that the Orchestrator surfaces as warnings rather than hard failures,
// since none of them make a backup run incorrect.
type VolumeCharacteristics struct {
	IsNetwork    bool
	IsRemovable  bool
	IsMountPoint bool
	FSType       string
}

// DetectVolumeCharacteristics inspects the drive backing path via
// GetDriveType and GetVolumeInformation, so a caller can warn before a
// network share or a removable disk surprises them mid-run.
func DetectVolumeCharacteristics(path string) (VolumeCharacteristics, error) {
	root := filepath.VolumeName(path) + string(filepath.Separator)
	rootPtr, err := windows.UTF16PtrFromString(root)
	if err != nil {
		return VolumeCharacteristics{}, err
	}

	driveType := windows.GetDriveType(rootPtr)

	var fsNameBuf [windows.MAX_PATH + 1]uint16
	_ = windows.GetVolumeInformation(rootPtr, nil, 0, nil, nil, nil, &fsNameBuf[0], uint32(len(fsNameBuf)))
	fsType := strings.TrimRight(windows.UTF16ToString(fsNameBuf[:]), "\x00")

	mount, err := IsMountPoint(path)
	if err != nil {
		mount = false
	}

	return VolumeCharacteristics{
		IsNetwork:    driveType == windows.DRIVE_REMOTE,
		IsRemovable:  driveType == windows.DRIVE_REMOVABLE || driveType == windows.DRIVE_CDROM,
		IsMountPoint: mount,
		FSType:       fsType,
	}, nil
}
