package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pledgewatch/pkg/types"
)

// writeFile writes content to a temp file and returns its path.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "state.json", `{
		"pledges": [
			null,
			{"amount": "1000", "owner": "1", "token": "0xDAI", "pledgeState": "Pledged"},
			{"amount": "250", "owner": 2, "token": "0xdai", "pledgeState": "Paying"}
		],
		"admins": [
			null,
			{"type": "Project", "name": "water well"},
			{"type": "Giver", "name": "alice"}
		]
	}`)

	snap, err := Load(path)
	require.NoError(t, err)

	require.Len(t, snap.Pledges, 3)
	require.Len(t, snap.Admins, 3)

	// Entry 0 is the sentinel regardless of file content.
	assert.Equal(t, types.Pledge{}, snap.Pledges[0])
	assert.Equal(t, types.Admin{}, snap.Admins[0])

	p1 := snap.Pledge(1)
	assert.Equal(t, 1, p1.ID)
	assert.Equal(t, 1, p1.Owner)
	assert.Equal(t, "0xDAI", p1.Token)
	assert.Equal(t, types.StatePledged, p1.State)
	assert.Equal(t, "1000", p1.Amount.String())

	// Owner given as a JSON number decodes the same as a string.
	p2 := snap.Pledge(2)
	assert.Equal(t, 2, p2.Owner)
	assert.Equal(t, types.StatePaying, p2.State)

	a1 := snap.Admin(1)
	assert.Equal(t, types.AdminProject, a1.Kind)
	assert.Equal(t, "water well", a1.Name)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "malformed json", content: `{"pledges": [`},
		{
			name:    "bad amount",
			content: `{"pledges": [null, {"amount": "x", "owner": "1", "token": "t", "pledgeState": "Pledged"}], "admins": [null]}`,
		},
		{
			name:    "bad state",
			content: `{"pledges": [null, {"amount": "1", "owner": "1", "token": "t", "pledgeState": "Gone"}], "admins": [null]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "state.json", tt.content)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
		assert.Error(t, err)
	})
}

func TestSnapshotAccessorsOutOfRange(t *testing.T) {
	snap := &Snapshot{
		Pledges: []types.Pledge{{}, {ID: 1}},
		Admins:  []types.Admin{{}, {ID: 1}},
	}

	assert.Equal(t, types.Pledge{}, snap.Pledge(99))
	assert.Equal(t, types.Pledge{}, snap.Pledge(-1))
	assert.Equal(t, types.Admin{}, snap.Admin(99))
}

func TestLoadEvents(t *testing.T) {
	path := writeFile(t, "events.json", `[
		{"transactionHash": "0xabc", "returnValues": {"from": "0", "to": "1", "amount": "1000"}},
		{"transactionHash": "0xdef", "returnValues": {"from": 1, "to": 2, "amount": "400"}}
	]`)

	events, err := LoadEvents(path)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "0xabc", events[0].TxHash)
	assert.True(t, events[0].IsMint())
	assert.Equal(t, 1, events[0].To)
	assert.Equal(t, "1000", events[0].Amount.String())

	assert.False(t, events[1].IsMint())
	assert.Equal(t, 1, events[1].From)
	assert.Equal(t, 2, events[1].To)
}

func TestLoadEventsErrors(t *testing.T) {
	path := writeFile(t, "events.json", `[{"transactionHash": "0x1", "returnValues": {"from": "0", "to": "1", "amount": "-3"}}]`)
	_, err := LoadEvents(path)
	assert.Error(t, err)

	_, err = LoadEvents(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
