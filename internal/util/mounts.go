package util

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Filesystem types where SQLite's WAL locking is unreliable
var networkFSTypes = map[string]bool{
	"nfs": true, "nfs4": true, "cifs": true, "smbfs": true, "smb3": true,
	"afpfs": true, "sshfs": true, "fuse.sshfs": true, "9p": true, "ceph": true,
}

// MountInfo describes the filesystem holding a path
type MountInfo struct {
	MountPoint string
	FSType     string
}

// IsNetwork reports whether the filesystem is network mounted
func (m MountInfo) IsNetwork() bool {
	return networkFSTypes[m.FSType]
}

// MountFor finds the mount holding path from /proc/mounts. Returns nil,
// nil where the mount table is not available.
func MountFor(path string) (*MountInfo, error) {
	f, err := os.Open("/proc/mounts")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return findMount(f, abs)
}

// findMount picks the longest mount point that is a prefix of path
func findMount(r io.Reader, path string) (*MountInfo, error) {
	var best *MountInfo
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		// device mountpoint fstype options dump pass
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		mp := fields[1]
		if !underMount(path, mp) {
			continue
		}
		if best == nil || len(mp) >= len(best.MountPoint) {
			best = &MountInfo{MountPoint: mp, FSType: fields[2]}
		}
	}
	return best, scanner.Err()
}

func underMount(path, mountPoint string) bool {
	if mountPoint == "/" {
		return strings.HasPrefix(path, "/")
	}
	return path == mountPoint || strings.HasPrefix(path, mountPoint+"/")
}
