package extractors

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/LilVoxy/taxi_warehouse/ETL/models"
)

// LoadZoneLookup читает справочник зон TLC (LocationID,Borough,Zone,service_zone).
// Пустой путь означает отсутствие справочника: все районы будут Unknown.
func LoadZoneLookup(path string) (map[int]string, error) {
	zones := make(map[int]string)
	if path == "" {
		return zones, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия справочника зон %s: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения справочника зон: %w", err)
	}
	if len(records) == 0 {
		return zones, nil
	}

	idCol, boroughCol := -1, -1
	for i, name := range records[0] {
		switch strings.TrimPrefix(strings.TrimSpace(name), "\ufeff") {
		case "LocationID":
			idCol = i
		case "Borough":
			boroughCol = i
		}
	}
	if idCol < 0 || boroughCol < 0 {
		return nil, fmt.Errorf("%w: LocationID/Borough в справочнике зон", ErrMissingColumn)
	}

	for _, rec := range records[1:] {
		if idCol >= len(rec) || boroughCol >= len(rec) {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(rec[idCol]))
		if err != nil {
			continue
		}
		borough := strings.TrimSpace(rec[boroughCol])
		if borough == "" || borough == "N/A" {
			borough = models.UnknownBorough
		}
		zones[id] = borough
	}
	return zones, nil
}
