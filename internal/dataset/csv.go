package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// LoadCSV reads interactions from a CSV file with columns
// user,item,rating[,timestamp]. A header row is skipped when its rating
// column does not parse as a number. Timestamps are Unix seconds.
func LoadCSV(path string) ([]Interaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, &ValidationError{Reason: fmt.Sprintf("csv: %s is empty", path)}
	}

	start := 0
	if len(records[0]) >= 3 {
		if _, err := strconv.ParseFloat(records[0][2], 64); err != nil {
			start = 1 // header row
		}
	}

	interactions := make([]Interaction, 0, len(records)-start)
	for n, rec := range records[start:] {
		line := start + n + 1
		if len(rec) < 3 {
			return nil, &ValidationError{Reason: fmt.Sprintf("csv: line %d has %d columns, want at least 3", line, len(rec))}
		}
		rating, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("csv: line %d: bad rating %q", line, rec[2])}
		}
		in := Interaction{UserID: rec[0], ItemID: rec[1], Rating: rating}
		if len(rec) >= 4 && rec[3] != "" {
			secs, err := strconv.ParseInt(rec[3], 10, 64)
			if err != nil {
				return nil, &ValidationError{Reason: fmt.Sprintf("csv: line %d: bad timestamp %q", line, rec[3])}
			}
			in.Timestamp = time.Unix(secs, 0).UTC()
		}
		interactions = append(interactions, in)
	}

	return interactions, nil
}

// LoadFeaturesCSV reads a feature table from a CSV file where the first
// column is the id and the remaining columns are the vector. All rows must
// have the same width.
func LoadFeaturesCSV(path string) (*Features, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, &ValidationError{Reason: fmt.Sprintf("csv: %s is empty", path)}
	}
	if len(records[0]) < 2 {
		return nil, &ValidationError{Reason: fmt.Sprintf("csv: %s: feature rows need an id plus at least one value", path)}
	}

	feats := NewFeatures(len(records[0]) - 1)
	for n, rec := range records {
		vec := make([]float64, len(rec)-1)
		for j, cell := range rec[1:] {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, &ValidationError{Reason: fmt.Sprintf("csv: line %d: bad value %q", n+1, cell)}
			}
			vec[j] = v
		}
		if err := feats.Set(rec[0], vec); err != nil {
			return nil, err
		}
	}

	return feats, nil
}

// LoadEdgesCSV reads an item graph from a CSV file with columns
// from,to[,weight]. Missing weights default to 1.
func LoadEdgesCSV(path string) (*Adjacency, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: parse %s: %w", path, err)
	}

	adj := NewAdjacency()
	for n, rec := range records {
		if len(rec) < 2 {
			return nil, &ValidationError{Reason: fmt.Sprintf("csv: line %d has %d columns, want at least 2", n+1, len(rec))}
		}
		w := 1.0
		if len(rec) >= 3 && rec[2] != "" {
			w, err = strconv.ParseFloat(rec[2], 64)
			if err != nil {
				return nil, &ValidationError{Reason: fmt.Sprintf("csv: line %d: bad weight %q", n+1, rec[2])}
			}
		}
		adj.AddEdge(rec[0], rec[1], w)
	}

	return adj, nil
}
