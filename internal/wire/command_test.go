package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandBuilders_Wire(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{
			name: "connect keeps zero port indices",
			cmd:  Connect("n1", 0, "n2", 0),
			want: `{"kind":"connect","sourceNodeId":"n1","sourcePortIdx":0,"destinationNodeId":"n2","destinationPortIdx":0}`,
		},
		{
			name: "translate",
			cmd:  Translate([]string{"n1"}, []string{"a1"}, XY{X: 100, Y: -25}),
			want: `{"kind":"translate","nodeIds":["n1"],"annotationIds":["a1"],"translation":{"x":100,"y":-25}}`,
		},
		{
			name: "delete",
			cmd:  Delete([]string{"n1"}, nil, []string{"c1"}),
			want: `{"kind":"delete","nodeIds":["n1"],"connectionIds":["c1"]}`,
		},
		{
			name: "add node",
			cmd:  AddNode("org.example.Reader", XY{X: 5, Y: 5}),
			want: `{"kind":"add_node","position":{"x":5,"y":5},"nodeFactory":"org.example.Reader"}`,
		},
		{
			name: "expand",
			cmd:  Expand("metanode", "n3"),
			want: `{"kind":"expand","containerType":"metanode","nodeId":"n3"}`,
		},
		{
			name: "add port",
			cmd:  AddPort("n3", "input", "table"),
			want: `{"kind":"add_port","nodeId":"n3","side":"input","portTypeId":"table"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.cmd)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestRenameNormalizesToNFC(t *testing.T) {
	cmd := RenameNodeLabel("n1", "Cafe\u0301")
	assert.Equal(t, "Caf\u00e9", cmd.Label)
	assert.Equal(t, KindRenameNodeLabel, cmd.Kind)

	cmd = RenameContainer("n2", "Re\u0301sume\u0301")
	assert.Equal(t, "R\u00e9sum\u00e9", cmd.Name)
}

func TestCollapseCopyCutPaste(t *testing.T) {
	assert.Equal(t, KindCollapse, Collapse("component", []string{"n1"}, nil).Kind)
	assert.Equal(t, KindCopy, Copy([]string{"n1"}, nil).Kind)
	assert.Equal(t, KindCut, Cut([]string{"n1"}, nil).Kind)
	p := Paste("{}", XY{X: 1, Y: 2})
	assert.Equal(t, KindPaste, p.Kind)
	require.NotNil(t, p.Position)
	assert.Equal(t, 2.0, p.Position.Y)
}
