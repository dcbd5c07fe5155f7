package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const procMounts = `/dev/sda1 / ext4 rw,relatime 0 0
proc /proc proc rw,nosuid 0 0
nas:/export /home/me/nas nfs4 rw,vers=4.2 0 0
//server/share /mnt/share cifs rw 0 0
/dev/sdb1 /home/me/nasty ext4 rw 0 0
`

func TestFindMount(t *testing.T) {
	tests := []struct {
		path    string
		mount   string
		network bool
	}{
		{"/var/lib/tsos.db", "/", false},
		{"/home/me/nas/tsos.db", "/home/me/nas", true},
		{"/home/me/nas", "/home/me/nas", true},
		{"/home/me/nasty/tsos.db", "/home/me/nasty", false},
		{"/mnt/share/a/b.db", "/mnt/share", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			m, err := findMount(strings.NewReader(procMounts), tt.path)
			require.NoError(t, err)
			require.NotNil(t, m)
			assert.Equal(t, tt.mount, m.MountPoint)
			assert.Equal(t, tt.network, m.IsNetwork())
		})
	}
}

func TestMountForTempDir(t *testing.T) {
	m, err := MountFor(t.TempDir())
	require.NoError(t, err)
	if m == nil {
		t.Skip("no mount table on this platform")
	}
	assert.NotEmpty(t, m.FSType)
}
