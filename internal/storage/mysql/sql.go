package mysql

const insertTourSQL = `
INSERT INTO tours (id, destination, high_confidence, medium_confidence, low_confidence, fallbacks, processing_ms, created_at)
VALUES (?,?,?,?,?,?,?,COALESCE(?, CURRENT_TIMESTAMP))`

const insertLandmarksPrefix = `
INSERT INTO landmarks
  (id, tour_id, position, name, lat, lon, description, place_id, source, confidence, rating, photo_refs, types, address)
VALUES `

const getTourSQL = `
SELECT id, destination, high_confidence, medium_confidence, low_confidence, fallbacks, processing_ms, created_at
FROM tours
WHERE id = ?`

const latestTourSQL = `
SELECT id, destination, high_confidence, medium_confidence, low_confidence, fallbacks, processing_ms, created_at
FROM tours
WHERE destination = ?
ORDER BY created_at DESC, id DESC
LIMIT 1`

const listLandmarksSQL = `
SELECT id, name, lat, lon, description, place_id, source, confidence, rating, photo_refs, types, address
FROM landmarks
WHERE tour_id = ?
ORDER BY position`
