package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"vozlocal/pkg/proto"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("record not found")

// Store provides the database operations of the pipeline.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store over an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetOrCreateCitizen finds the citizen with the given hashed user key,
// creating one on first contact. Existing citizens get their last-seen time
// bumped; an empty display name never overwrites a stored one.
func (s *Store) GetOrCreateCitizen(userKeyHash, displayName, city, inclusionGroup string) (*Citizen, error) {
	if userKeyHash == "" {
		return nil, fmt.Errorf("citizen: user key hash must not be empty")
	}

	now := time.Now().UTC()
	existing, err := s.citizenByHash(userKeyHash)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err == nil {
		if _, err := s.db.Exec(
			`UPDATE citizens SET last_seen_at = ?, display_name = CASE WHEN ? <> '' THEN ? ELSE display_name END WHERE id = ?`,
			now, displayName, displayName, existing.ID,
		); err != nil {
			return nil, fmt.Errorf("touch citizen %s: %w", existing.ID, err)
		}
		existing.LastSeenAt = now
		if displayName != "" {
			existing.DisplayName = displayName
		}
		return existing, nil
	}

	citizen := &Citizen{
		ID:             GenerateID(),
		UserKeyHash:    userKeyHash,
		DisplayName:    displayName,
		City:           city,
		InclusionGroup: inclusionGroup,
		CreatedAt:      now,
		LastSeenAt:     now,
	}
	_, err = s.db.Exec(
		`INSERT INTO citizens (id, user_key_hash, display_name, city, inclusion_group, created_at, last_seen_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		citizen.ID, citizen.UserKeyHash, citizen.DisplayName, citizen.City, citizen.InclusionGroup,
		citizen.CreatedAt, citizen.LastSeenAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert citizen: %w", err)
	}
	return citizen, nil
}

func (s *Store) citizenByHash(userKeyHash string) (*Citizen, error) {
	row := s.db.QueryRow(
		`SELECT id, user_key_hash, COALESCE(display_name,''), COALESCE(city,''), COALESCE(inclusion_group,''), created_at, last_seen_at
		 FROM citizens WHERE user_key_hash = ?`, userKeyHash)

	var c Citizen
	err := row.Scan(&c.ID, &c.UserKeyHash, &c.DisplayName, &c.City, &c.InclusionGroup, &c.CreatedAt, &c.LastSeenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan citizen: %w", err)
	}
	return &c, nil
}

// InsertInteraction appends one interaction record after validating it.
func (s *Store) InsertInteraction(in *Interaction) error {
	if in.CitizenID == "" {
		return fmt.Errorf("interaction: citizen id must not be empty")
	}
	if !proto.ValidInteractionKind(in.Kind) {
		return fmt.Errorf("interaction: invalid kind %q", in.Kind)
	}
	if in.Kind == proto.InteractionOpinion && !proto.ValidOpinionValue(in.Opinion) {
		return fmt.Errorf("interaction: opinion %q invalid for kind %s", in.Opinion, in.Kind)
	}
	if in.ID == "" {
		in.ID = GenerateID()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO interactions (id, citizen_id, bill_id, kind, opinion, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		in.ID, in.CitizenID, nullable(in.BillID), string(in.Kind), nullable(string(in.Opinion)), in.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

// InsertProposal appends one classified proposal after validating it.
func (s *Store) InsertProposal(p *Proposal) error {
	if p.CitizenID == "" {
		return fmt.Errorf("proposal: citizen id must not be empty")
	}
	if strings.TrimSpace(p.Content) == "" {
		return fmt.Errorf("proposal: content must not be empty")
	}
	if !proto.ValidContentKind(p.ContentKind) {
		return fmt.Errorf("proposal: invalid content kind %q", p.ContentKind)
	}
	if p.ID == "" {
		p.ID = GenerateID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	secondary, err := json.Marshal(p.SecondaryThemes)
	if err != nil {
		return fmt.Errorf("proposal: marshal secondary themes: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO proposals (id, citizen_id, content, content_kind, summary, city, inclusion_group,
		                        primary_theme, secondary_themes, confidence, needs_review, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.CitizenID, p.Content, string(p.ContentKind), p.Summary, p.City, p.InclusionGroup,
		string(p.PrimaryTheme), string(secondary), p.Confidence, boolToInt(p.NeedsReview), p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert proposal: %w", err)
	}
	return nil
}

// UpsertBill inserts or updates a bill by external id.
func (s *Store) UpsertBill(b *Bill) error {
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("bill: title must not be empty")
	}
	if !proto.ValidBillStatus(b.Status) {
		return fmt.Errorf("bill: invalid status %q", b.Status)
	}
	if b.ID == "" {
		b.ID = GenerateID()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO bills (id, external_id, title, summary, primary_theme, city, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(external_id) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary,
			primary_theme = excluded.primary_theme,
			city = excluded.city,
			status = excluded.status`,
		b.ID, nullable(b.ExternalID), b.Title, b.Summary, string(b.PrimaryTheme), b.City, string(b.Status), b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert bill: %w", err)
	}
	return nil
}

// RandomBillInTramitation picks one random in-tramitation bill for the
// view-bill flow. Returns ErrNotFound when none exist.
func (s *Store) RandomBillInTramitation() (*Bill, error) {
	row := s.db.QueryRow(
		`SELECT id, COALESCE(external_id,''), title, COALESCE(summary,''), COALESCE(primary_theme,''), COALESCE(city,''), status, created_at
		 FROM bills WHERE status = ? ORDER BY RANDOM() LIMIT 1`, string(proto.BillInTramitation))
	return scanBill(row)
}

// BillsByTheme returns up to limit in-tramitation bills for one theme,
// newest first. An empty theme returns bills across all themes.
func (s *Store) BillsByTheme(theme proto.Theme, limit int) ([]*Bill, error) {
	query := `SELECT id, COALESCE(external_id,''), title, COALESCE(summary,''), COALESCE(primary_theme,''), COALESCE(city,''), status, created_at
	          FROM bills WHERE status = ?`
	args := []any{string(proto.BillInTramitation)}
	if theme != "" {
		query += " AND primary_theme = ?"
		args = append(args, string(theme))
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bills by theme: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var bills []*Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bills: %w", err)
	}
	return bills, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBill(row rowScanner) (*Bill, error) {
	var b Bill
	var theme, status string
	err := row.Scan(&b.ID, &b.ExternalID, &b.Title, &b.Summary, &theme, &b.City, &status, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan bill: %w", err)
	}
	b.PrimaryTheme = proto.Theme(theme)
	b.Status = proto.BillStatus(status)
	return &b, nil
}

// DemandCounts groups proposals by the given dimension and returns the count
// per non-empty dimension key.
func (s *Store) DemandCounts(dim proto.Dimension) (map[string]int, error) {
	column, err := proposalColumn(dim)
	if err != nil {
		return nil, err
	}
	return s.groupedCounts(fmt.Sprintf(
		`SELECT %s, COUNT(*) FROM proposals WHERE %s IS NOT NULL AND %s <> '' GROUP BY %s`,
		column, column, column, column))
}

// BillCounts groups in-tramitation bills by the given dimension and returns
// the count per non-empty dimension key. Bills carry no inclusion group, so
// the group dimension always returns an empty map.
func (s *Store) BillCounts(dim proto.Dimension) (map[string]int, error) {
	var column string
	switch dim {
	case proto.DimensionTheme:
		column = "primary_theme"
	case proto.DimensionCity:
		column = "city"
	case proto.DimensionGroup:
		return map[string]int{}, nil
	default:
		return nil, fmt.Errorf("unknown dimension %q", dim)
	}
	return s.groupedCounts(fmt.Sprintf(
		`SELECT %s, COUNT(*) FROM bills WHERE status = '%s' AND %s IS NOT NULL AND %s <> '' GROUP BY %s`,
		column, string(proto.BillInTramitation), column, column, column))
}

func proposalColumn(dim proto.Dimension) (string, error) {
	switch dim {
	case proto.DimensionTheme:
		return "primary_theme", nil
	case proto.DimensionGroup:
		return "inclusion_group", nil
	case proto.DimensionCity:
		return "city", nil
	}
	return "", fmt.Errorf("unknown dimension %q", dim)
}

func (s *Store) groupedCounts(query string) (map[string]int, error) {
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("grouped count query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scan grouped count: %w", err)
		}
		counts[key] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grouped counts: %w", err)
	}
	return counts, nil
}

// ReplaceGapMetrics atomically rewrites the cached metrics for one
// dimension. Recomputation is idempotent; stale keys disappear.
func (s *Store) ReplaceGapMetrics(dim proto.Dimension, metrics []*GapMetric) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin gap metrics tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM gap_metrics WHERE dimension_kind = ?`, string(dim)); err != nil {
		return fmt.Errorf("clear gap metrics for %s: %w", dim, err)
	}
	for _, m := range metrics {
		if m.ComputedAt.IsZero() {
			m.ComputedAt = time.Now().UTC()
		}
		_, err := tx.Exec(
			`INSERT INTO gap_metrics (dimension_kind, dimension_key, demand_count, bill_count, gap_percent, severity, computed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.DimensionKind, m.DimensionKey, m.DemandCount, m.BillCount, m.GapPercent, m.Severity, m.ComputedAt,
		)
		if err != nil {
			return fmt.Errorf("insert gap metric %s/%s: %w", m.DimensionKind, m.DimensionKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit gap metrics: %w", err)
	}
	return nil
}

// GapMetrics returns the cached metrics for one dimension, widest gap first
// with demand as the tiebreaker.
func (s *Store) GapMetrics(dim proto.Dimension) ([]*GapMetric, error) {
	rows, err := s.db.Query(
		`SELECT dimension_kind, dimension_key, demand_count, bill_count, gap_percent, severity, computed_at
		 FROM gap_metrics WHERE dimension_kind = ?
		 ORDER BY gap_percent DESC, demand_count DESC, dimension_key ASC`, string(dim))
	if err != nil {
		return nil, fmt.Errorf("query gap metrics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var metrics []*GapMetric
	for rows.Next() {
		var m GapMetric
		if err := rows.Scan(&m.DimensionKind, &m.DimensionKey, &m.DemandCount, &m.BillCount,
			&m.GapPercent, &m.Severity, &m.ComputedAt); err != nil {
			return nil, fmt.Errorf("scan gap metric: %w", err)
		}
		metrics = append(metrics, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gap metrics: %w", err)
	}
	return metrics, nil
}

// AggregateCounts reports total citizens, interactions, and proposals for
// the dashboard collaborator.
func (s *Store) AggregateCounts() (citizens, interactions, proposals int, err error) {
	for _, q := range []struct {
		table string
		dest  *int
	}{
		{"citizens", &citizens},
		{"interactions", &interactions},
		{"proposals", &proposals},
	} {
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + q.table).Scan(q.dest); err != nil {
			return 0, 0, 0, fmt.Errorf("count %s: %w", q.table, err)
		}
	}
	return citizens, interactions, proposals, nil
}

// ProposalsNeedingReview returns proposals flagged for manual review, oldest
// first.
func (s *Store) ProposalsNeedingReview(limit int) ([]*Proposal, error) {
	rows, err := s.db.Query(
		`SELECT id, citizen_id, content, content_kind, COALESCE(summary,''), COALESCE(city,''),
		        COALESCE(inclusion_group,''), COALESCE(primary_theme,''), COALESCE(secondary_themes,'[]'),
		        confidence, needs_review, created_at
		 FROM proposals WHERE needs_review = 1 ORDER BY created_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query proposals needing review: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Proposal
	for rows.Next() {
		var p Proposal
		var kind, theme, secondary string
		var review int
		if err := rows.Scan(&p.ID, &p.CitizenID, &p.Content, &kind, &p.Summary, &p.City,
			&p.InclusionGroup, &theme, &secondary, &p.Confidence, &review, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		p.ContentKind = proto.ContentKind(kind)
		p.PrimaryTheme = proto.Theme(theme)
		p.NeedsReview = review != 0
		if err := json.Unmarshal([]byte(secondary), &p.SecondaryThemes); err != nil {
			return nil, fmt.Errorf("unmarshal secondary themes for %s: %w", p.ID, err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proposals: %w", err)
	}
	return out, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
