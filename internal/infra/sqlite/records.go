package sqlite

import (
	"context"
	"fmt"

	"github.com/kumanofoo/tako/internal/domain"
)

// ─── Season Records ─────────────────────────────────────────────────────────

// Records returns season snapshots grouped by date, ranked richest first
// within each date. date filters to one season boundary ("" means all);
// top keeps only the leading ranks (0 means unlimited); winnersOnly drops
// owners whose snapshot fell short of the target. Ranking is computed
// within the filtered set, so among winners the best winner is rank 1.
func (d *DB) Records(ctx context.Context, date string, top int64, winnersOnly bool) (map[string][]domain.SeasonRecord, error) {
	winner := 0
	if winnersOnly {
		winner = 1
	}
	rows, err := d.q(ctx).QueryContext(ctx,
		`SELECT date, owner_id, name, balance, target, badge,
		        RANK() OVER (PARTITION BY date ORDER BY balance DESC) AS ranking
		 FROM (
		     SELECT r.date AS date, r.owner_id AS owner_id, a.name AS name,
		            r.balance AS balance, r.target AS target, a.badge AS badge
		     FROM records r
		     JOIN accounts a ON r.owner_id = a.owner_id
		     WHERE (? = '' OR r.date = ?)
		       AND (? = 0 OR r.balance >= r.target)
		 )
		 ORDER BY date, ranking`,
		date, date, winner)
	if err != nil {
		return nil, fmt.Errorf("get records: %w", err)
	}
	defer rows.Close()

	grouped := make(map[string][]domain.SeasonRecord)
	for rows.Next() {
		var r domain.SeasonRecord
		err := rows.Scan(&r.Date, &r.OwnerID, &r.Name, &r.Balance, &r.Target, &r.Badge, &r.Ranking)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if top > 0 && r.Ranking > top {
			continue
		}
		grouped[r.Date] = append(grouped[r.Date], r)
	}
	return grouped, rows.Err()
}

// OwnerRecords returns one owner's snapshot per season boundary, oldest
// first. Ranking here is over all participants of that boundary, not just
// winners.
func (d *DB) OwnerRecords(ctx context.Context, ownerID string) ([]domain.SeasonRecord, error) {
	rows, err := d.q(ctx).QueryContext(ctx,
		`SELECT date, owner_id, balance, target, ranking
		 FROM (
		     SELECT date, owner_id, balance, target,
		            RANK() OVER (PARTITION BY date ORDER BY balance DESC) AS ranking
		     FROM records
		 )
		 WHERE owner_id = ?
		 ORDER BY date`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("get owner records: %w", err)
	}
	defer rows.Close()

	var recs []domain.SeasonRecord
	for rows.Next() {
		var r domain.SeasonRecord
		if err := rows.Scan(&r.Date, &r.OwnerID, &r.Balance, &r.Target, &r.Ranking); err != nil {
			return nil, fmt.Errorf("scan owner record: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
