package inventory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "migration-cost/pkg/errors"
)

func TestLoadFileYAML(t *testing.T) {
	vms, err := LoadFile("testdata/inventory.yaml")
	require.NoError(t, err)
	require.Len(t, vms, 3)

	assert.Equal(t, "vm-002", vms[1].ID)
	assert.Equal(t, 8192.0, vms[1].MemoryMB)
	assert.Equal(t, "staging", vms[2].Workload)
}

func TestLoadFileJSONArray(t *testing.T) {
	vms, err := LoadFile("testdata/inventory.json")
	require.NoError(t, err)
	require.Len(t, vms, 2)

	fp, err := vms[0].Footprint()
	require.NoError(t, err)
	assert.Equal(t, Testing, fp.WorkloadClass)
}

func TestDecodeJSONWrapped(t *testing.T) {
	vms, err := DecodeJSON([]byte(`{"vms": [{"name": "x", "cpu": 1, "memory_gb": 1}]}`))
	require.NoError(t, err)
	require.Len(t, vms, 1)
	assert.Equal(t, "x", vms[0].Key())
}

func TestDecodeYAMLSequence(t *testing.T) {
	vms, err := DecodeYAML([]byte("- name: a\n  cpu: 1\n  memory_gb: 2\n"))
	require.NoError(t, err)
	require.Len(t, vms, 1)
	assert.Equal(t, 1, vms[0].CPU)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"cpu": "two"`), 0o600))
	_, err := LoadFile(bad)
	assert.ErrorIs(t, err, perrors.ErrParse)

	csv := filepath.Join(dir, "vms.csv")
	require.NoError(t, os.WriteFile(csv, []byte("a,b"), 0o600))
	_, err = LoadFile(csv)
	assert.ErrorIs(t, err, perrors.ErrConfiguration)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
