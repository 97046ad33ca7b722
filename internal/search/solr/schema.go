package solr

// Field is a Solr schema field definition.
type Field struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Indexed     bool   `json:"indexed"`
	Stored      bool   `json:"stored"`
	MultiValued bool   `json:"multiValued,omitempty"`
	DocValues   bool   `json:"docValues,omitempty"`
}

// Fields lists every field the layer documents use. "id" is part of the
// core's default schema.
var Fields = []Field{
	{Name: "type", Type: "string", Indexed: true, Stored: true},
	{Name: "LayerId", Type: "plong", Indexed: true, Stored: true},
	{Name: "LayerName", Type: "string", Indexed: true, Stored: true},
	{Name: "LayerTitle", Type: "text_general", Indexed: true, Stored: true},
	{Name: "LayerAbstract", Type: "text_general", Indexed: true, Stored: true},
	{Name: "LayerUrl", Type: "string", Indexed: false, Stored: true},
	{Name: "LayerPageUrl", Type: "string", Indexed: false, Stored: true},
	{Name: "LayerKeywords", Type: "string", Indexed: true, Stored: true, MultiValued: true},
	{Name: "LayerDate", Type: "pdate", Indexed: true, Stored: true, DocValues: true},
	{Name: "LayerDateRange", Type: "rdate", Indexed: true, Stored: true},
	{Name: "LayerDateType", Type: "string", Indexed: true, Stored: true},
	{Name: "LayerReliability", Type: "pdouble", Indexed: true, Stored: true},
	{Name: "IsPublic", Type: "boolean", Indexed: true, Stored: true},
	{Name: "Availability", Type: "string", Indexed: true, Stored: true},
	{Name: "ServiceId", Type: "plong", Indexed: true, Stored: true},
	{Name: "ServiceType", Type: "string", Indexed: true, Stored: true},
	{Name: "ServiceUrl", Type: "string", Indexed: false, Stored: true},
	{Name: "Catalog", Type: "string", Indexed: true, Stored: true},
	{Name: "Originator", Type: "string", Indexed: true, Stored: true, DocValues: true},
	{Name: "DomainName", Type: "string", Indexed: true, Stored: true},
	{Name: "SrsProjectionCode", Type: "string", Indexed: true, Stored: true, MultiValued: true},
	{Name: "MinX", Type: "pdouble", Indexed: true, Stored: true},
	{Name: "MinY", Type: "pdouble", Indexed: true, Stored: true},
	{Name: "MaxX", Type: "pdouble", Indexed: true, Stored: true},
	{Name: "MaxY", Type: "pdouble", Indexed: true, Stored: true},
	{Name: "CenterX", Type: "pdouble", Indexed: true, Stored: true},
	{Name: "CenterY", Type: "pdouble", Indexed: true, Stored: true},
	{Name: "HalfWidth", Type: "pdouble", Indexed: true, Stored: true},
	{Name: "HalfHeight", Type: "pdouble", Indexed: true, Stored: true},
	{Name: "Area", Type: "pdouble", Indexed: true, Stored: true},
	{Name: "bbox", Type: "location_rpt", Indexed: true, Stored: true},
	{Name: "Centroid", Type: "location", Indexed: true, Stored: true},
}

// FieldTypes are added when the core lacks them. The stock configset
// already provides the others.
var FieldTypes = []map[string]any{
	{"name": "rdate", "class": "solr.DateRangeField"},
}
