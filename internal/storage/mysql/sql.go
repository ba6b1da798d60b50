package mysql

const upsertRunSQL = `
INSERT INTO index_runs
  (id, index_name, doc_type, data_path, status, hotels_total, indexed_count, failed_count, started_at, finished_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  status        = VALUES(status),
  hotels_total  = VALUES(hotels_total),
  indexed_count = VALUES(indexed_count),
  failed_count  = VALUES(failed_count),
  finished_at   = VALUES(finished_at)
`

const deleteTonesSQL = `DELETE FROM hotel_tones WHERE run_id = ? AND hotel = ?`

const insertTonesPrefix = "INSERT INTO hotel_tones\n  (run_id, hotel, position, tone_id, score, observations, reviews)\nVALUES "

const insertMissSQL = `
INSERT INTO index_misses (run_id, hotel, stage, reason)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  stage   = VALUES(stage),
  reason  = VALUES(reason),
  seen_at = CURRENT_TIMESTAMP
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const getRunSQL = `
SELECT id, index_name, doc_type, data_path, status,
       hotels_total, indexed_count, failed_count, started_at, finished_at
FROM index_runs
WHERE id = ?
`

// Run ids are ULIDs, so MAX(run_id) is the latest run that indexed the hotel.
const latestTonesSQL = `
SELECT tone_id, score, observations
FROM hotel_tones
WHERE hotel = ?
  AND run_id = (SELECT MAX(run_id) FROM hotel_tones WHERE hotel = ?)
ORDER BY position
`
