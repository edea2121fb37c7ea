package importcost

import "github.com/Sumatoshi-tech/importcost/pkg/importmodel"

// Record is the wire shape of one import. Absent sizes serialize as -1.
type Record struct {
	Name string            `json:"name"`
	Line int               `json:"line"`
	Size importmodel.Bytes `json:"size"`
	Gzip importmodel.Bytes `json:"gzip"`
}

// Normalize maps engine results to records, preserving order.
func Normalize(imports []importmodel.Import) []Record {
	records := make([]Record, 0, len(imports))

	for _, imp := range imports {
		records = append(records, Record{
			Name: imp.Name,
			Line: imp.Line,
			Size: imp.Size,
			Gzip: imp.Gzip,
		})
	}

	return records
}
