package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by Format.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCSV  = "csv"
	FormatText = "text"
)

// SupportedFormats lists the output formats in display order.
var SupportedFormats = []string{FormatJSON, FormatYAML, FormatCSV, FormatText}

var labelCaser = cases.Title(language.English)

// ToJSONImage serializes a single ImageResult to pretty JSON.
func ToJSONImage(res *ImageResult) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToJSONImages serializes multiple results to pretty JSON.
func ToJSONImages(results []*ImageResult) (string, error) {
	b, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToYAMLImages serializes results as a YAML sequence.
func ToYAMLImages(results []*ImageResult) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(results); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var csvHeader = []string{
	"path", "class_index", "label", "score",
	"b0", "b1", "b2", "b3",
	"src_x1", "src_y1", "src_x2", "src_y2",
}

// ToCSVImages exports one row per detection with a header.
func ToCSVImages(results []*ImageResult) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return "", err
	}
	for _, res := range results {
		if res == nil {
			continue
		}
		for _, d := range res.Detections {
			row := []string{
				res.Path,
				strconv.Itoa(d.ClassIndex),
				d.Label,
				fmt.Sprintf("%.4f", d.Score),
				formatFloat(float64(d.Box[0])),
				formatFloat(float64(d.Box[1])),
				formatFloat(float64(d.Box[2])),
				formatFloat(float64(d.Box[3])),
			}
			if d.SourceBox != nil {
				row = append(row,
					formatFloat(d.SourceBox.X1), formatFloat(d.SourceBox.Y1),
					formatFloat(d.SourceBox.X2), formatFloat(d.SourceBox.Y2))
			} else {
				row = append(row, "", "", "", "")
			}
			if err := w.Write(row); err != nil {
				return "", err
			}
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}

// ToPlainTextImage renders a human-readable summary of one result.
func ToPlainTextImage(res *ImageResult) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	var sb strings.Builder
	name := res.Path
	if name == "" {
		name = "image"
	}
	fmt.Fprintf(&sb, "%s (%dx%d): %d detection(s)\n", name, res.Width, res.Height, len(res.Detections))
	for _, d := range res.Detections {
		fmt.Fprintf(&sb, "  %-16s %5.1f%%", labelCaser.String(d.Label), d.Score*100)
		if d.SourceBox != nil {
			fmt.Fprintf(&sb, "  [%.0f, %.0f, %.0f, %.0f]",
				d.SourceBox.X1, d.SourceBox.Y1, d.SourceBox.X2, d.SourceBox.Y2)
		}
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// ToPlainTextImages concatenates text summaries.
func ToPlainTextImages(results []*ImageResult) (string, error) {
	var sb strings.Builder
	for _, res := range results {
		if res == nil {
			continue
		}
		s, err := ToPlainTextImage(res)
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}

// Format renders results in the named format.
func Format(results []*ImageResult, format string) (string, error) {
	switch strings.ToLower(format) {
	case FormatJSON, "":
		if len(results) == 1 {
			return ToJSONImage(results[0])
		}
		return ToJSONImages(results)
	case FormatYAML, "yml":
		return ToYAMLImages(results)
	case FormatCSV:
		return ToCSVImages(results)
	case FormatText, "txt":
		return ToPlainTextImages(results)
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}

// SortDetectionsByScore orders detections by descending score, keeping the
// model order for ties.
func SortDetectionsByScore(res *ImageResult) {
	if res == nil {
		return
	}
	sort.SliceStable(res.Detections, func(i, j int) bool {
		return res.Detections[i].Score > res.Detections[j].Score
	})
}

// CountByLabel tallies detections per label.
func CountByLabel(res *ImageResult) map[string]int {
	counts := make(map[string]int)
	if res == nil {
		return counts
	}
	for _, d := range res.Detections {
		counts[d.Label]++
	}
	return counts
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
