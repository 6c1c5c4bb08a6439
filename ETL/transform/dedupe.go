package transform

import "github.com/LilVoxy/taxi_warehouse/ETL/models"

// DropDuplicateTrips оставляет первое вхождение каждой поездки по её натуральному ключу
func DropDuplicateTrips(trips []models.EncodedTrip) (kept []models.EncodedTrip, dropped int) {
	seen := make(map[string]struct{}, len(trips))
	kept = make([]models.EncodedTrip, 0, len(trips))
	for _, t := range trips {
		key := t.TripKey()
		if _, dup := seen[key]; dup {
			dropped++
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, t)
	}
	return kept, dropped
}
