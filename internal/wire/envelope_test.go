package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatchOperation_Validate(t *testing.T) {
	tests := []struct {
		name    string
		op      PatchOperation
		wantErr bool
	}{
		{"add", PatchOperation{Op: OpAdd, Path: "/nodes/n1", Value: json.RawMessage(`{}`)}, false},
		{"replace root", PatchOperation{Op: OpReplace, Path: "", Value: json.RawMessage(`{}`)}, false},
		{"remove", PatchOperation{Op: OpRemove, Path: "/nodes/n1"}, false},
		{"add without value", PatchOperation{Op: OpAdd, Path: "/nodes/n1"}, true},
		{"relative path", PatchOperation{Op: OpRemove, Path: "nodes/n1"}, true},
		{"move unsupported", PatchOperation{Op: "move", Path: "/a"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDecodePayload(t *testing.T) {
	wc, err := DecodePayload[WorkflowChanged](json.RawMessage(`{"patch":{"ops":[{"op":"remove","path":"/nodes/n1"}]},"snapshotId":"7"}`))
	require.NoError(t, err)
	require.Len(t, wc.Patch.Ops, 1)
	assert.Equal(t, OpRemove, wc.Patch.Ops[0].Op)
	assert.Equal(t, "7", wc.SnapshotID)

	_, err = DecodePayload[Toast](nil)
	assert.Error(t, err)

	_, err = DecodePayload[Toast](json.RawMessage(`[1,2]`))
	assert.Error(t, err)
}

func TestDecodeWorkflow_FillsMaps(t *testing.T) {
	wf, err := DecodeWorkflow([]byte(`{"info":{"containerId":"root"}}`))
	require.NoError(t, err)
	assert.NotNil(t, wf.Nodes)
	assert.NotNil(t, wf.Connections)
	assert.NotNil(t, wf.Annotations)
	assert.Equal(t, "root", wf.Info.ContainerID)
}

func TestWorkflow_SortedIDs(t *testing.T) {
	wf, err := DecodeWorkflow([]byte(`{
		"nodes":{"n2":{"id":"n2"},"n1":{"id":"n1"}},
		"workflowAnnotations":{"a2":{"id":"a2"},"a1":{"id":"a1"}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"n1", "n2"}, wf.NodeIDs())
	assert.Equal(t, []string{"a1", "a2"}, wf.AnnotationIDs())
}
