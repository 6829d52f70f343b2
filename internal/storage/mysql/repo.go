package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"tour_atlas/internal/domain"
)

func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func valJSON(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(b)
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// SaveTour writes the tour row and its landmarks in one transaction. The
// orchestrator calls this fire-and-forget; a failure only costs history.
func (r *Repo) SaveTour(ctx context.Context, t domain.Tour) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, insertTourSQL,
		t.ID,
		t.Destination,
		t.Quality.HighConfidence,
		t.Quality.MediumConfidence,
		t.Quality.LowConfidence,
		valJSON(t.FallbacksUsed),
		t.ProcessingMs,
		t.CreatedAt,
	); err != nil {
		return err
	}

	if len(t.Landmarks) > 0 {
		values := make([]string, 0, len(t.Landmarks))
		args := make([]any, 0, len(t.Landmarks)*14)
		for i, lm := range t.Landmarks {
			values = append(values, "(?,?,?,?,?,?,?,?,?,?,?,?,?,?)")
			args = append(args,
				lm.ID,
				t.ID,
				i,
				lm.Name,
				lm.Coords.Lat,
				lm.Coords.Lon,
				lm.Description,
				lm.PlaceID,
				string(lm.Source),
				lm.Confidence,
				valF64(lm.Rating),
				valJSON(lm.PhotoRefs),
				valJSON(lm.Types),
				lm.Address,
			)
		}
		sqlStr := insertLandmarksPrefix + strings.Join(values, ",")
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *Repo) GetTour(ctx context.Context, id string) (domain.Tour, error) {
	return r.scanTour(ctx, r.db.QueryRowContext(ctx, getTourSQL, id))
}

func (r *Repo) LatestTour(ctx context.Context, destination string) (domain.Tour, error) {
	return r.scanTour(ctx, r.db.QueryRowContext(ctx, latestTourSQL, destination))
}

func (r *Repo) scanTour(ctx context.Context, row *sql.Row) (domain.Tour, error) {
	var t domain.Tour
	var fallbacksJSON []byte
	if err := row.Scan(
		&t.ID,
		&t.Destination,
		&t.Quality.HighConfidence,
		&t.Quality.MediumConfidence,
		&t.Quality.LowConfidence,
		&fallbacksJSON,
		&t.ProcessingMs,
		&t.CreatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return domain.Tour{}, domain.ErrNotFound
		}
		return domain.Tour{}, err
	}
	_ = json.Unmarshal(fallbacksJSON, &t.FallbacksUsed)

	landmarks, err := r.listLandmarks(ctx, t.ID)
	if err != nil {
		return domain.Tour{}, err
	}
	t.Landmarks = landmarks
	return t, nil
}

func (r *Repo) listLandmarks(ctx context.Context, tourID string) ([]domain.ResolvedLandmark, error) {
	rows, err := r.db.QueryContext(ctx, listLandmarksSQL, tourID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ResolvedLandmark
	for rows.Next() {
		var lm domain.ResolvedLandmark
		var source string
		var rating sql.NullFloat64
		var desc, placeID, address sql.NullString
		var photosJSON, typesJSON []byte
		if err := rows.Scan(
			&lm.ID,
			&lm.Name,
			&lm.Coords.Lat,
			&lm.Coords.Lon,
			&desc,
			&placeID,
			&source,
			&lm.Confidence,
			&rating,
			&photosJSON,
			&typesJSON,
			&address,
		); err != nil {
			return nil, err
		}
		lm.Source = domain.CoordinateSource(source)
		if rating.Valid {
			v := rating.Float64
			lm.Rating = &v
		}
		if desc.Valid {
			lm.Description = desc.String
		}
		if placeID.Valid {
			lm.PlaceID = placeID.String
		}
		if address.Valid {
			lm.Address = address.String
		}
		_ = json.Unmarshal(photosJSON, &lm.PhotoRefs)
		_ = json.Unmarshal(typesJSON, &lm.Types)
		out = append(out, lm)
	}
	return out, rows.Err()
}
