package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		tokens []string
		want   PeerClass
	}{
		{"empty", []string{}, NotAPeer},
		{"nil", nil, NotAPeer},
		{"empty argv0", []string{"", "1", "1", "1", "job-5", "/bin/true"}, NotAPeer},
		{"other binary", []string{"/bin/sleep", "1", "1", "1", "job-5"}, NotAPeer},
		{"suffix only", []string{"hpc-container-ctl", "1", "1", "1", "job-5"}, NotAPeer},
		{"short", []string{"hpc-container", "1", "1", "1"}, NotAPeer},
		{"same", []string{"./hpc-container", "1", "1", "1", "job-5", "/bin/true"}, PeerSameJob},
		{"bare job token", []string{"hpc-container", "1", "1", "1", "job-5"}, PeerSameJob},
		{"older", []string{"/opt/hpc-container", "1", "1", "1", "job-4", "/bin/true"}, PeerOlderJob},
		{"newer", []string{"/opt/hpc-container", "1", "1", "1", "job-6", "/bin/true"}, PeerNewerJob},
		{"prefix is older", []string{"hpc-container", "1", "1", "1", "job-", "/bin/true"}, PeerOlderJob},
		{"longer is newer", []string{"hpc-container", "1", "1", "1", "job-50", "/bin/true"}, PeerNewerJob},
		{
			"tagged",
			[]string{"hpc-container", "--record=v1", "--max-procs=1", "--job-id=job-4", "--max-vm=1", "--max-time=1", "--", "/bin/true"},
			PeerOlderJob,
		},
		{
			"tagged unknown version",
			[]string{"hpc-container", "--record=v9", "--job-id=job-5", "--", "/bin/true"},
			NotAPeer,
		},
		{
			"tagged job id after end of record",
			[]string{"hpc-container", "--record=v1", "--", "/bin/true", "--job-id=job-5"},
			NotAPeer,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Classify(c.tokens, "hpc-container", "job-5"))
		})
	}
}

func TestDecodeJobID(t *testing.T) {
	id, ok := DecodeJobID([]string{"hpc-container", "--record=v1", "--job-id=a=b", "--", "x"})
	require.True(t, ok)
	assert.Equal(t, "a=b", id)

	id, ok = DecodeJobID([]string{"hpc-container", "1", "2", "3", "J", "x"})
	require.True(t, ok)
	assert.Equal(t, "J", id)

	_, ok = DecodeJobID([]string{"hpc-container", "1"})
	assert.False(t, ok)
}

func TestPeerClassString(t *testing.T) {
	assert.Equal(t, "older-job", PeerOlderJob.String())
	assert.Equal(t, "PeerClass(9)", PeerClass(9).String())
}

func TestParseSignal(t *testing.T) {
	for _, name := range []string{"SIGKILL", "KILL", "kill", "9"} {
		sig, err := ParseSignal(name)
		require.NoError(t, err, name)
		assert.Equal(t, unix.SIGKILL, sig, name)
	}
	sig, err := ParseSignal("term")
	require.NoError(t, err)
	assert.Equal(t, unix.SIGTERM, sig)

	for _, name := range []string{"", "0", "-3", "SIGWHAT"} {
		_, err := ParseSignal(name)
		assert.ErrorIs(t, err, ErrUnknownSignal, name)
	}
}

func TestFindContainers(t *testing.T) {
	snapshots := []ProcessSnapshot{
		{PID: 1, CommandLine: []string{"/sbin/init"}},
		{PID: 2, CommandLine: []string{}},
		{PID: 3, CommandLine: []string{"hpc-container", "1", "1", "1", "job-a", "/bin/true"}},
		{PID: 4, CommandLine: []string{"hpc-container", "--record=v1", "--job-id=job-b", "--", "/bin/true"}},
		{PID: 5, CommandLine: []string{"hpc-container", "1"}},
	}
	containers := FindContainers(snapshots, "hpc-container")
	require.Len(t, containers, 2)
	assert.Equal(t, 3, containers[0].PID)
	assert.Equal(t, "job-a", containers[0].JobID)
	assert.Equal(t, 4, containers[1].PID)
	assert.Equal(t, "job-b", containers[1].JobID)
}
