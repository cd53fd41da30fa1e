//go:build !windows

package preflight

import (
	"golang.org/x/sys/unix"
)

// networkFilesystemMagic lists the statfs f_type magic numbers of the
// network filesystems this tool recognizes, so the Orchestrator can warn
// the caller that a remote destination will make hashing and mtime
// comparisons slower and less reliable than on local disk.
var networkFilesystemMagic = map[int64]string{
	0x6969:     "nfs",
	0xFF534D42: "cifs",
	0x65735546: "fuse.sshfs",
	0x01021994: "tmpfs",
}

// opticalOrRemovableFilesystemMagic lists the statfs f_type magic numbers
// of filesystems typically found on optical discs and removable media
// (USB sticks, SD cards), so the Orchestrator can clamp concurrency the
// same way it does for network destinations.
var opticalOrRemovableFilesystemMagic = map[int64]string{
	0x9660:     "iso9660",
	0x15013346: "udf",
	0x4d44:     "msdos",
	0x2011BAB0: "exfat",
}

// VolumeCharacteristics describes properties of the filesystem backing a
// path that the Orchestrator surfaces as warnings rather than hard
// failures, since none of them make a backup run incorrect.
type VolumeCharacteristics struct {
	IsNetwork    bool
	IsRemovable  bool
	IsMountPoint bool
	FSType       string
}

// DetectVolumeCharacteristics inspects the filesystem backing path via
// statfs(2) and reports whether it sits on a network filesystem, optical
// disc, or removable media, and whether it's its own mount point, so a
// caller can warn or throttle before a slow or removable destination
// surprises them mid-run.
func DetectVolumeCharacteristics(path string) (VolumeCharacteristics, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return VolumeCharacteristics{}, err
	}
	magic := int64(stat.Type)
	netName, isNetwork := networkFilesystemMagic[magic]
	removableName, isRemovable := opticalOrRemovableFilesystemMagic[magic]

	name := netName
	if name == "" {
		name = removableName
	}

	mount, err := IsMountPoint(path)
	if err != nil {
		mount = false
	}

	return VolumeCharacteristics{
		IsNetwork:    isNetwork,
		IsRemovable:  isRemovable,
		IsMountPoint: mount,
		FSType:       name,
	}, nil
}
