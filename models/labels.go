// Package models - Class label handling for detection models.
package models

import (
	"bufio"
	"fmt"
	"os"

	"github.com/pkg/errors"
)

// BackgroundOffset is the shift between a class identifier reported by an SSD model and its
// row in a labels file. The first row is the background class that was dropped when the model
// was converted.
const BackgroundOffset = 1

// labelPadding is the multiple the label list is padded to.
const labelPadding = 16

// UnusedLabel marks a row of a label map with no class behind it.
const UnusedLabel = "???"

// COCOLabels is the default label map for COCO trained SSD models. Rows follow the 90 id COCO
// scheme, background first, with UnusedLabel in the gaps.
var COCOLabels = []string{
	"???", "person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "???", "stop sign", "parking meter", "bench", "bird", "cat", "dog", "horse",
	"sheep", "cow", "elephant", "bear", "zebra", "giraffe", "???", "backpack", "umbrella", "???",
	"???", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite", "baseball bat",
	"baseball glove", "skateboard", "surfboard", "tennis racket", "bottle", "???", "wine glass", "cup", "fork", "knife",
	"spoon", "bowl", "banana", "apple", "sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza",
	"donut", "cake", "chair", "couch", "potted plant", "bed", "???", "dining table", "???", "???",
	"toilet", "???", "tv", "laptop", "mouse", "remote", "keyboard", "cell phone", "microwave", "oven",
	"toaster", "sink", "refrigerator", "???", "book", "clock", "vase", "scissors", "teddy bear", "hair drier",
	"toothbrush",
}

// ReadLabelsFile reads a file with one label per line.
//
// The returned list is padded with empty labels up to a multiple of 16 so it can back a
// tensor of that alignment.
//
// Arguments:
//   - path: Path to the labels file.
//
// Returns:
//   - []string: The padded label list.
//   - int: The number of labels read before padding.
//   - error: An error if the file cannot be opened or read.
func ReadLabelsFile(path string) ([]string, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "labels file %s not found", path)
	}
	defer file.Close()

	var labels []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		labels = append(labels, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, errors.Wrapf(err, "failed to read labels file %s", path)
	}

	found := len(labels)
	for len(labels)%labelPadding != 0 {
		labels = append(labels, "")
	}

	return labels, found, nil
}

// LoadLabels returns the labels in path, or COCOLabels when path is empty.
func LoadLabels(path string) ([]string, error) {
	if path == "" {
		return COCOLabels, nil
	}
	labels, _, err := ReadLabelsFile(path)
	return labels, err
}

// Label resolves a class identifier reported by the model to its label text.
//
// Arguments:
//   - labels: Label list whose first entry is the background class.
//   - class: Class identifier as reported by the model.
//
// Returns:
//   - string: The label, or "unknown(<class>)" when the list has no row for it or the row is
//     UnusedLabel.
func Label(labels []string, class int) string {
	row := class + BackgroundOffset
	if class < 0 || row >= len(labels) || labels[row] == "" || labels[row] == UnusedLabel {
		return fmt.Sprintf("unknown(%d)", class)
	}
	return labels[row]
}
