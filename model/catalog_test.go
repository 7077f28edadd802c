package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildGridCatalog(t *testing.T, servers map[string]*EdgeServer) *Catalog {
	t.Helper()
	doc := strings.NewReader(`{
		"service_types": [
			{"id": "filter", "name": "Filter", "processing_time": 5, "processing_output": 21},
			{"id": "aggregate", "name": "Aggregate", "processing_time": 6, "processing_output": 22}
		],
		"assignments": [
			{"id": "a-filter", "type_id": "filter", "server_id": "edge1"},
			{"id": "a-aggregate", "type_id": "aggregate", "server_id": "edge2"}
		],
		"applications": [
			{"id": "app1", "name": "Pipeline", "service_ids": ["a-filter", "a-aggregate"]}
		]
	}`)
	cat, err := LoadCatalogFromReader(doc, servers)
	require.NoError(t, err)
	return cat
}

func TestLoadCatalogFromReader(t *testing.T) {
	_, servers := buildGridTopology(t)
	cat := buildGridCatalog(t, servers)

	require.Len(t, cat.Services, 2)
	require.Len(t, cat.Applications, 1)

	app := cat.Applications["app1"]
	require.NotNil(t, app)
	require.Len(t, app.Services, 2)
	require.Equal(t, 5, app.Services[0].ProcessingTime)
	require.Equal(t, 21, app.Services[0].ProcessingOutput)
	require.Same(t, servers["edge1"], app.Services[0].Server)
}

func TestLoadCatalogFromReaderRejectsUnknownServiceType(t *testing.T) {
	_, servers := buildGridTopology(t)
	doc := strings.NewReader(`{
		"assignments": [{"id": "a1", "type_id": "ghost", "server_id": "edge1"}]
	}`)
	_, err := LoadCatalogFromReader(doc, servers)
	require.Error(t, err)
}

func TestLoadCatalogFromReaderRejectsUnknownApplicationService(t *testing.T) {
	_, servers := buildGridTopology(t)
	doc := strings.NewReader(`{
		"applications": [{"id": "app1", "service_ids": ["ghost"]}]
	}`)
	_, err := LoadCatalogFromReader(doc, servers)
	require.Error(t, err)
}

func TestLoadCatalogFromReaderRejectsNonPositiveProcessingTime(t *testing.T) {
	_, servers := buildGridTopology(t)
	doc := strings.NewReader(`{
		"service_types": [{"id": "bad", "processing_time": 0, "processing_output": 1}]
	}`)
	_, err := LoadCatalogFromReader(doc, servers)
	require.Error(t, err)
}
