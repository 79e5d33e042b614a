package mysql

const insertRequestSQL = `
INSERT INTO hotel_requests
  (id, created_ts, destination_text, requester_email, nickname,
   check_in_date, check_out_date, hotel_brands_json, source,
   submission_ip, ua_hash, processed)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

// Readiness derives from workbook_url alone; processed is selected for
// logging but never gates the answer.
const statusSQL = `
SELECT processed, workbook_url, created_ts
FROM hotel_requests
WHERE id = ?
`

const summarySQL = `
SELECT destination_text, check_in_date, check_out_date
FROM hotel_requests
WHERE id = ?
`

// vw_top_results is owned end to end by the external producer; every column
// may be NULL and is coerced on scan.
const resultsSQL = `
SELECT hotel_name, brand, distance, price, discount_pct, retail_price,
       rating, review_count, currency, booking_url
FROM vw_top_results
WHERE request_id = ?
ORDER BY price
`
