// Package report scores interval predictions and writes experiment artifacts.
package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ChizhovVadim/piven/internal/compress"
	"github.com/ChizhovVadim/piven/pkg/piven"
)

const (
	MetricsFile     = "metrics.json"
	PredictionsFile = "predictions.csv"
)

type Metrics struct {
	Loss     float64 `json:"loss"`
	MAE      float64 `json:"mae"`
	RMSE     float64 `json:"rmse"`
	Coverage float64 `json:"coverage"`
	PIWidth  float64 `json:"pi_width"`
}

// Score evaluates p against yTrue with loss.
func Score(loss *piven.Loss, yTrue []float64, p piven.Prediction) (Metrics, error) {
	var terms, err = loss.Score(yTrue, p)
	if err != nil {
		return Metrics{}, err
	}
	return Metrics{
		Loss:     terms.Total,
		MAE:      piven.MAE(yTrue, p.Point),
		RMSE:     piven.RMSE(yTrue, p.Point),
		Coverage: piven.Coverage(yTrue, p.Lower, p.Upper),
		PIWidth:  piven.Width(p.Lower, p.Upper),
	}, nil
}

func (m Metrics) String() string {
	return fmt.Sprintf("loss: %.4f mae: %.4f rmse: %.4f coverage: %.3f pi_width: %.4f",
		m.Loss, m.MAE, m.RMSE, m.Coverage, m.PIWidth)
}

func WriteMetrics(path string, m Metrics) error {
	var data, err = json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func ReadMetrics(path string) (Metrics, error) {
	var m Metrics
	var data, err = os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err = json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parse %v: %w", path, err)
	}
	return m, nil
}

// WritePredictions writes one row per example with the row index first.
// yTrue may be nil, in which case the y_true column is omitted.
func WritePredictions(w io.Writer, yTrue []float64, p piven.Prediction) error {
	if yTrue != nil && len(yTrue) != p.Len() {
		return fmt.Errorf("%w: %v targets, %v predictions", piven.ErrIncompatibleShape, len(yTrue), p.Len())
	}
	var cw = csv.NewWriter(w)
	var header = []string{""}
	if yTrue != nil {
		header = append(header, "y_true")
	}
	header = append(header, "y_pred", "y_pi_low", "y_pi_high")
	if err := cw.Write(header); err != nil {
		return err
	}
	var record = make([]string, 0, len(header))
	for i := 0; i < p.Len(); i++ {
		record = append(record[:0], strconv.Itoa(i))
		if yTrue != nil {
			record = append(record, formatFloat(yTrue[i]))
		}
		record = append(record,
			formatFloat(p.Point[i]),
			formatFloat(p.Lower[i]),
			formatFloat(p.Upper[i]))
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePredictionsFile writes the predictions CSV compressed with codecType.
// The codec extension is appended to path; the written path is returned.
func WritePredictionsFile(path string, codecType compress.Type, yTrue []float64, p piven.Prediction) (string, error) {
	codec, err := compress.Get(codecType)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err = WritePredictions(&buf, yTrue, p); err != nil {
		return "", err
	}
	data, err := codec.Compress(buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("compress predictions: %w", err)
	}
	path += codecType.Extension()
	if err = os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}
