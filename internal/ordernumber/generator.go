package ordernumber

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/orderengine/pkg/db"
	pkgerrors "github.com/angelmondragon/orderengine/pkg/errors"
)

const (
	prefix    = "ORD-"
	dayLayout = "20060102"
	seqWidth  = 5
)

// nextSQL bumps the per-day counter. A day seen for the first time is seeded
// from the highest number already issued under its prefix, so rows written
// before the counter table existed are never reissued. The row stays locked
// until the surrounding unit of work ends.
const nextSQL = `
INSERT INTO order_sequences (day, last_value, updated_at)
VALUES (?, (
	SELECT COALESCE(MAX(CAST(SUBSTR(order_number, 14) AS INTEGER)), 0)
	FROM orders
	WHERE order_number LIKE ?
) + 1, ?)
ON CONFLICT (day) DO UPDATE
SET last_value = order_sequences.last_value + 1,
	updated_at = excluded.updated_at
RETURNING last_value`

// Generator hands out ORD-YYYYMMDD-NNNNN identifiers from a dedicated counter row.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// NextOrderNumber allocates the next number for date's UTC calendar day inside tx.
func (g *Generator) NextOrderNumber(ctx context.Context, tx *gorm.DB, date time.Time) (string, error) {
	if tx == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "transaction required for order number allocation")
	}
	day := date.UTC().Format(dayLayout)

	var seq int64
	err := tx.WithContext(ctx).
		Raw(nextSQL, day, prefix+day+"-%", date.UTC()).
		Scan(&seq).Error
	if err != nil {
		return "", dbpkg.WrapStorage(err, "allocate order number")
	}
	if seq <= 0 {
		return "", pkgerrors.Newf(pkgerrors.CodeInternal, "order sequence for %s returned %d", day, seq)
	}
	return Format(date, seq), nil
}

// Format renders an order number. Sequences past 99999 widen instead of wrapping.
func Format(date time.Time, seq int64) string {
	return fmt.Sprintf("%s%s-%0*d", prefix, date.UTC().Format(dayLayout), seqWidth, seq)
}

// Parse splits an order number into its UTC day and sequence.
func Parse(number string) (time.Time, int64, error) {
	rest, ok := strings.CutPrefix(number, prefix)
	if !ok {
		return time.Time{}, 0, fmt.Errorf("order number %q: missing %s prefix", number, prefix)
	}
	dayPart, seqPart, ok := strings.Cut(rest, "-")
	if !ok || len(seqPart) < seqWidth {
		return time.Time{}, 0, fmt.Errorf("order number %q: malformed sequence", number)
	}
	day, err := time.ParseInLocation(dayLayout, dayPart, time.UTC)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("order number %q: %w", number, err)
	}
	seq, err := strconv.ParseInt(seqPart, 10, 64)
	if err != nil || seq <= 0 {
		return time.Time{}, 0, fmt.Errorf("order number %q: invalid sequence", number)
	}
	return day, seq, nil
}
