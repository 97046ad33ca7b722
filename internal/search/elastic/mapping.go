package elastic

// DefaultPrecision is the geo_shape quadtree precision.
const DefaultPrecision = "500m"

// Mapping returns the index body with the layer mapping.
func Mapping(precision string) map[string]any {
	if precision == "" {
		precision = DefaultPrecision
	}
	keyword := map[string]any{"type": "string", "index": "not_analyzed"}
	text := map[string]any{"type": "string"}
	double := map[string]any{"type": "double"}
	long := map[string]any{"type": "long"}
	date := map[string]any{"type": "date", "format": "date_optional_time"}
	boolean := map[string]any{"type": "boolean"}

	return map[string]any{
		"mappings": map[string]any{
			DocType: map[string]any{
				"properties": map[string]any{
					"id":                long,
					"layer_id":          long,
					"name":              keyword,
					"title":             text,
					"abstract":          text,
					"url":               keyword,
					"page_url":          keyword,
					"layer_keywords":    keyword,
					"layer_date":        date,
					"layer_date_end":    date,
					"layer_datetype":    keyword,
					"layer_originator":  keyword,
					"layer_reliability": double,
					"is_public":         boolean,
					"is_available":      boolean,
					"service_id":        long,
					"service_type":      keyword,
					"service_url":       keyword,
					"catalog":           keyword,
					"domain_name":       keyword,
					"srs":               keyword,
					"min_x":             double,
					"min_y":             double,
					"max_x":             double,
					"max_y":             double,
					"area":              double,
					"bbox":              keyword,
					"layer_geoshape": map[string]any{
						"type":      "geo_shape",
						"tree":      "quadtree",
						"precision": precision,
					},
					"layer_centroid": map[string]any{"type": "geo_point"},
				},
			},
		},
	}
}
