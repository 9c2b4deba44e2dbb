package view

import "github.com/loranexus/loranexus/internal/store"

type exportStore interface {
	ListNodes(includeIgnored bool) ([]store.Node, error)
	Edges(activeOnly bool) ([]store.TopologyEdge, error)
}

// FullExport is the payload behind the "full export" route spec.md §6 lists,
// grounded on original_source/plugins/node_web_server.py:export_json.
type FullExport struct {
	Nodes []store.Node        `json:"nodes"`
	Edges []store.TopologyEdge `json:"edges"`
}

// Export builds the full JSON export: every non-ignored node plus every
// topology edge, active or not.
func Export(st exportStore) (FullExport, error) {
	nodes, err := st.ListNodes(false)
	if err != nil {
		return FullExport{}, err
	}
	edges, err := st.Edges(false)
	if err != nil {
		return FullExport{}, err
	}
	return FullExport{Nodes: nodes, Edges: edges}, nil
}

// GeoJSONFeature is one node rendered as a GeoJSON Point feature.
type GeoJSONFeature struct {
	Type       string         `json:"type"`
	Geometry   GeoJSONPoint   `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// GeoJSONPoint is a GeoJSON Point geometry.
type GeoJSONPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"` // [lon, lat]
}

// GeoJSONCollection is a GeoJSON FeatureCollection of node positions.
type GeoJSONCollection struct {
	Type     string           `json:"type"`
	Features []GeoJSONFeature `json:"features"`
}

// ExportGeoJSON renders every positioned, non-ignored node as a GeoJSON
// FeatureCollection, grounded on
// original_source/plugins/node_web_server.py:export_geojson. Nodes without
// a position are omitted — GeoJSON has no representation for a pointless
// Point feature.
func ExportGeoJSON(st exportStore) (GeoJSONCollection, error) {
	nodes, err := st.ListNodes(false)
	if err != nil {
		return GeoJSONCollection{}, err
	}
	out := GeoJSONCollection{Type: "FeatureCollection", Features: []GeoJSONFeature{}}
	for _, n := range nodes {
		if n.Latitude == nil || n.Longitude == nil {
			continue
		}
		out.Features = append(out.Features, GeoJSONFeature{
			Type:     "Feature",
			Geometry: GeoJSONPoint{Type: "Point", Coordinates: [2]float64{*n.Longitude, *n.Latitude}},
			Properties: map[string]any{
				"node_id":    n.ID,
				"short_name": n.ShortName,
				"long_name":  n.LongName,
				"is_airplane": n.IsAirplane,
			},
		})
	}
	return out, nil
}
