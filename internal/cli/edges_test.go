package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdgesJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewEdgesCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{scenarioPath("branching.json")})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string      `json:"status"`
		Data   EdgesResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Len(t, resp.Data.Edges, 4)
	assert.Equal(t, "to-B", resp.Data.Edges[0].ID)
	assert.Equal(t, "A", resp.Data.Edges[0].From)
	assert.True(t, resp.Data.Edges[3].Conditional)
}

func TestEdgesTextMarksDangling(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewEdgesCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{scenarioPath("dangling.json")})

	require.NoError(t, cmd.Execute())
	out := buf.String()
	assert.Contains(t, out, "FROM")
	assert.Contains(t, out, "deleted-node")
	assert.Contains(t, out, "dangling")
}
