package repository

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/restaurant-reservation/internal/model"
)

// ReservationFilter narrows a restaurant's reservation list.  Zero values
// disable the corresponding condition.
type ReservationFilter struct {
	PhoneNumber  string     // substring of the customer's phone number
	From, To     *time.Time // start_time within [From, To], both inclusive
	MinPartySize int
	MenuName     string // substring of any selected menu's name
}

// ListByRestaurant returns reservations at the restaurant matching f,
// ordered by start time, with customer details and the full set of lines.
// A menu name match selects the reservation; it does not trim its lines.
func (r *ReservationRepo) ListByRestaurant(ctx context.Context, restaurantID uint64, f ReservationFilter) (out []model.Reservation, err error) {
	err = r.readTx(ctx, func(q queryer) error {
		out, err = listByRestaurant(ctx, q, restaurantID, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func listByRestaurant(ctx context.Context, q queryer, restaurantID uint64, f ReservationFilter) ([]model.Reservation, error) {
	where := []string{"r.restaurant_id = ?"}
	args := []any{restaurantID}

	if f.PhoneNumber != "" {
		where = append(where, "c.phone_number LIKE ?")
		args = append(args, "%"+escapeLike(f.PhoneNumber)+"%")
	}
	if f.From != nil {
		where = append(where, "r.start_time >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		where = append(where, "r.start_time <= ?")
		args = append(args, f.To.UTC())
	}
	if f.MinPartySize > 0 {
		where = append(where, "r.party_size >= ?")
		args = append(args, f.MinPartySize)
	}
	if f.MenuName != "" {
		where = append(where, `EXISTS (SELECT 1 FROM reservation_menus rm
			JOIN menus m ON m.id = rm.menu_id
			WHERE rm.reservation_id = r.id AND m.name LIKE ?)`)
		args = append(args, "%"+escapeLike(f.MenuName)+"%")
	}

	query := `SELECT r.id, r.restaurant_id, r.customer_id, r.start_time, r.end_time, r.party_size,
			r.created_at, r.updated_at, c.name, c.phone_number
		FROM reservations r
		JOIN customers c ON c.id = r.customer_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY r.start_time ASC, r.id ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Reservation{}
	for rows.Next() {
		var res model.Reservation
		var c model.CustomerRef
		if err := rows.Scan(&res.ID, &res.RestaurantID, &res.CustomerID, &res.StartTime, &res.EndTime,
			&res.PartySize, &res.CreatedAt, &res.UpdatedAt, &c.Name, &c.PhoneNumber); err != nil {
			return nil, err
		}
		c.ID = res.CustomerID
		res.Customer = &c
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := attachLines(ctx, q, out); err != nil {
		return nil, err
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
