package dataset

import (
	"encoding/csv"
	"io"
	"strconv"
)

// WriteCSV writes the dataset with a header; the target column is written last as target.
func (d *Dataset) WriteCSV(w io.Writer, target string) error {
	var cw = csv.NewWriter(w)
	var header = append(append([]string{}, d.Columns...), target)
	if err := cw.Write(header); err != nil {
		return err
	}
	var record = make([]string, len(header))
	for i := range d.Y {
		var row = d.X.RawRowView(i)
		for j, v := range row {
			record[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		record[len(record)-1] = strconv.FormatFloat(d.Y[i], 'g', -1, 64)
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
