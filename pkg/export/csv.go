// Package export renders skill data into the downloadable formats served by
// the results endpoints.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/openskills/skillhub/pkg/storage"
)

var csvHeader = []string{
	"Canonical URL", "Skill Name", "Skill Statement", "Category",
	"Keywords", "Standards", "Occupation Codes", "Author",
}

// SkillsCSV renders skills as a CSV document. baseURL prefixes the canonical
// URL column.
func SkillsCSV(baseURL string, skills []*storage.Skill) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, s := range skills {
		record := []string{
			canonicalURL(baseURL, s.UUID),
			s.Name,
			s.Statement,
			s.Category,
			strings.Join(s.Keywords, "; "),
			strings.Join(s.Standards, "; "),
			strings.Join(s.JobCodes, "; "),
			s.Author,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}

func canonicalURL(baseURL, uuid string) string {
	return strings.TrimSuffix(baseURL, "/") + "/api/skills/" + uuid
}
