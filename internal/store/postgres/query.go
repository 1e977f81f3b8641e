package postgres

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/vaultbot/internal/domain"
)

// listQuery appends the time window, newest-first ordering and pagination of
// opts to a SELECT whose WHERE clause is already open. tsCol names the
// timestamp column the window applies to.
func listQuery(base string, args []any, tsCol string, opts domain.ListOpts) (string, []any) {
	var b strings.Builder
	b.WriteString(base)

	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if opts.Since != nil {
		fmt.Fprintf(&b, " AND %s >= %s", tsCol, next(*opts.Since))
	}
	if opts.Until != nil {
		fmt.Fprintf(&b, " AND %s <= %s", tsCol, next(*opts.Until))
	}
	fmt.Fprintf(&b, " ORDER BY %s DESC", tsCol)
	if opts.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %s", next(opts.Limit))
	}
	if opts.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %s", next(opts.Offset))
	}
	return b.String(), args
}
