package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	want := time.Date(2025, 2, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "rfc3339", input: `"2025-02-15T10:00:00Z"`, want: want},
		{name: "rfc3339 with offset", input: `"2025-02-15T13:00:00+03:00"`, want: want},
		{name: "naive", input: `"2025-02-15T10:00:00"`, want: want},
		{name: "naive with fraction", input: `"2025-02-15T10:00:00.500000"`, want: want.Add(500 * time.Millisecond)},
		{name: "null", input: `null`},
		{name: "garbage", input: `"yesterday"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp

			err := json.Unmarshal([]byte(tt.input), &ts)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.True(t, tt.want.Equal(ts.Time), "got %s", ts.Time)
		})
	}
}

func TestTestType(t *testing.T) {
	for _, tt := range TestTypes() {
		assert.True(t, tt.IsValid())
		assert.NotEqual(t, string(tt), tt.Label())
	}

	assert.False(t, TestType("soak").IsValid())
	assert.Equal(t, "soak", TestType("soak").Label())
}

func TestArtifactKind(t *testing.T) {
	assert.True(t, ArtifactCustomGC.IsCustom())
	assert.False(t, ArtifactGrafanaSlice.IsCustom())
	assert.True(t, ArtifactK8sLogs.IsKnown())

	unknown := ArtifactKind("custom_async_profiler")
	assert.False(t, unknown.IsKnown())
	assert.True(t, unknown.IsCustom())
	assert.Equal(t, "custom_async_profiler", unknown.Label())
}

func TestArtifact_UnknownKindPreserved(t *testing.T) {
	var a Artifact
	require.NoError(t, json.Unmarshal([]byte(`{"id":1,"test_id":2,"kind":"flamegraph"}`), &a))
	assert.Equal(t, ArtifactKind("flamegraph"), a.Kind)
	assert.Equal(t, "flamegraph", a.Name())
}

func TestArtifact_DecodeMetadata(t *testing.T) {
	tests := []struct {
		name   string
		meta   map[string]any
		decode func(t *testing.T, a Artifact)
	}{
		{
			name: "grafana slice",
			meta: map[string]any{"meta_path": "p/1.json", "panel_id": float64(7)},
			decode: func(t *testing.T, a Artifact) {
				var m GrafanaSliceMetadata
				require.NoError(t, a.DecodeMetadata(&m))
				assert.Equal(t, "p/1.json", m.MetaPath)
				assert.Equal(t, 7, m.PanelID)
			},
		},
		{
			name: "k8s log",
			meta: map[string]any{"pod": "api-0", "container": "app", "log_file": "k8s/api-0_app.log"},
			decode: func(t *testing.T, a Artifact) {
				var m K8sLogMetadata
				require.NoError(t, a.DecodeMetadata(&m))
				assert.Equal(t, "api-0", m.Pod)
				assert.Equal(t, "app", m.Container)
				assert.Equal(t, "k8s/api-0_app.log", m.LogFile)
			},
		},
		{
			name: "weakly typed numbers",
			meta: map[string]any{"pods_count": "4"},
			decode: func(t *testing.T, a Artifact) {
				var m K8sPodsMetadata
				require.NoError(t, a.DecodeMetadata(&m))
				assert.Equal(t, 4, m.PodsCount)
			},
		},
		{
			name: "nil metadata",
			decode: func(t *testing.T, a Artifact) {
				var m UploadMetadata
				require.NoError(t, a.DecodeMetadata(&m))
				assert.Empty(t, m.OriginalFilename)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.decode(t, Artifact{ID: 1, Metadata: tt.meta})
		})
	}
}

func TestProjectCreate_OmitsUnsetFields(t *testing.T) {
	data, err := json.Marshal(&ProjectCreate{Name: "svc-a"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"svc-a"}`, string(data))
}
