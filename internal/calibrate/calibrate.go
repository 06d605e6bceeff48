// Package calibrate implements the offline tolerance calibrator: given a
// labeled dataset (one directory per person), it measures genuine and
// impostor pair distances and sweeps candidate thresholds to recommend a
// match tolerance. It never mutates engine configuration; applying the
// recommendation is an operator decision.
package calibrate

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/glasslink/faceid/internal/extract"
	"github.com/glasslink/faceid/internal/identity"
	"github.com/glasslink/faceid/internal/imageproc"
)

// Grid describes the threshold sweep.
type Grid struct {
	Start float64
	End   float64
	Step  float64
}

// DefaultGrid returns the standard sweep: 0.30 to 0.80 in steps of 0.05.
func DefaultGrid() Grid {
	return Grid{Start: 0.30, End: 0.80, Step: 0.05}
}

// ThresholdRow holds the error rates measured at one candidate threshold.
type ThresholdRow struct {
	Threshold    float64
	FalseAccepts int
	FAR          float64 // percent of impostor pairs accepted
	FalseRejects int
	FRR          float64 // percent of genuine pairs rejected
	Accuracy     float64 // 100 - (FAR + FRR)
}

// SkippedImage records a dataset image excluded from calibration.
type SkippedImage struct {
	Path   string
	Reason string
}

// Report is the calibrator's output.
type Report struct {
	People    int
	Images    int
	Positives int // genuine (same-person) pairs
	Negatives int // impostor (cross-person) pairs

	Rows        []ThresholdRow
	Recommended float64

	// PerfectSeparation is true when every genuine pair is closer than every
	// impostor pair; GapLow/GapHigh bound the separating interval.
	PerfectSeparation bool
	GapLow            float64
	GapHigh           float64

	Skipped []SkippedImage
}

// Run calibrates against the dataset rooted at dir. Each immediate
// sub-directory names one person and contains their photos; directory names
// are normalized so accented and case variants label the same person.
// progress, when non-nil, is called after each image extraction.
func Run(dir string, ex extract.Extractor, grid Grid, progress func(done, total int)) (*Report, error) {
	images, err := collectImages(dir)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("no images found under %s", dir)
	}

	report := &Report{}
	limits := imageproc.DefaultLimits()

	// person label -> extracted vectors
	byPerson := make(map[string][]identity.Vector)
	for i, item := range images {
		vec, reason := extractOne(ex, item.path, limits)
		if reason != "" {
			report.Skipped = append(report.Skipped, SkippedImage{Path: item.path, Reason: reason})
		} else {
			byPerson[item.person] = append(byPerson[item.person], vec)
			report.Images++
		}
		if progress != nil {
			progress(i+1, len(images))
		}
	}
	report.People = len(byPerson)

	positives, negatives := pairDistances(byPerson)
	report.Positives = len(positives)
	report.Negatives = len(negatives)
	if len(positives) == 0 || len(negatives) == 0 {
		return report, fmt.Errorf("dataset must yield both same-person and cross-person pairs (got %d and %d); need at least two people with two usable photos each",
			len(positives), len(negatives))
	}

	report.Rows = sweep(positives, negatives, grid)

	best := report.Rows[0]
	for _, row := range report.Rows[1:] {
		if row.Accuracy > best.Accuracy {
			best = row
		}
	}
	report.Recommended = best.Threshold

	maxGenuine := positives[len(positives)-1]
	minImpostor := negatives[0]
	if maxGenuine < minImpostor {
		report.PerfectSeparation = true
		report.GapLow = maxGenuine
		report.GapHigh = minImpostor
	}

	return report, nil
}

type datasetImage struct {
	person string
	path   string
}

// collectImages lists the dataset's photos grouped by normalized person
// label. Non-image files and unreadable entries are ignored.
func collectImages(dir string) ([]datasetImage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading dataset directory: %w", err)
	}

	var images []datasetImage
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		person := NormalizeLabel(entry.Name())
		personDir := filepath.Join(dir, entry.Name())

		files, err := os.ReadDir(personDir)
		if err != nil {
			return nil, fmt.Errorf("reading person directory %s: %w", personDir, err)
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(f.Name())) {
			case ".jpg", ".jpeg", ".png":
				images = append(images, datasetImage{person: person, path: filepath.Join(personDir, f.Name())})
			}
		}
	}
	return images, nil
}

// extractOne loads a dataset photo and returns its descriptor, or a skip
// reason when the image yields anything other than exactly one face.
func extractOne(ex extract.Extractor, path string, limits imageproc.Limits) (identity.Vector, string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Sprintf("unreadable: %v", err)
	}

	img, err := imageproc.Decode(raw, limits)
	if err != nil {
		return nil, fmt.Sprintf("invalid image: %v", err)
	}
	jpegData, err := imageproc.EncodeJPEG(img)
	if err != nil {
		return nil, fmt.Sprintf("re-encode failed: %v", err)
	}

	faces, err := ex.Detect(jpegData)
	if err != nil {
		return nil, fmt.Sprintf("extraction failed: %v", err)
	}
	if len(faces) != 1 {
		return nil, fmt.Sprintf("expected exactly one face, found %d", len(faces))
	}
	return faces[0].Descriptor, ""
}

// pairDistances computes sorted genuine (same person) and impostor (cross
// person) pair distances.
func pairDistances(byPerson map[string][]identity.Vector) (positives, negatives []float64) {
	people := make([]string, 0, len(byPerson))
	for p := range byPerson {
		people = append(people, p)
	}
	sort.Strings(people)

	for i, p := range people {
		vecs := byPerson[p]
		for a := 0; a < len(vecs); a++ {
			for b := a + 1; b < len(vecs); b++ {
				positives = append(positives, identity.Distance(vecs[a], vecs[b]))
			}
		}
		for _, q := range people[i+1:] {
			for _, va := range vecs {
				for _, vb := range byPerson[q] {
					negatives = append(negatives, identity.Distance(va, vb))
				}
			}
		}
	}

	sort.Float64s(positives)
	sort.Float64s(negatives)
	return positives, negatives
}

// sweep measures FAR, FRR and combined accuracy at each grid threshold.
func sweep(positives, negatives []float64, grid Grid) []ThresholdRow {
	var rows []ThresholdRow
	for t := grid.Start; t <= grid.End+1e-9; t += grid.Step {
		threshold := math.Round(t*100) / 100

		falseRejects := 0
		for _, d := range positives {
			if d > threshold {
				falseRejects++
			}
		}
		falseAccepts := 0
		for _, d := range negatives {
			if d <= threshold {
				falseAccepts++
			}
		}

		far := float64(falseAccepts) / float64(len(negatives)) * 100
		frr := float64(falseRejects) / float64(len(positives)) * 100
		rows = append(rows, ThresholdRow{
			Threshold:    threshold,
			FalseAccepts: falseAccepts,
			FAR:          far,
			FalseRejects: falseRejects,
			FRR:          frr,
			Accuracy:     100 - (far + frr),
		})
	}
	return rows
}

// NormalizeLabel lowercases a person label and strips diacritics, so
// directory names like "Jiří" and "jiri" identify the same person.
func NormalizeLabel(label string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, label)
	if err != nil {
		out = label
	}
	return strings.ToLower(strings.TrimSpace(out))
}
