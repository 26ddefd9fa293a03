package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukerupert/smartcart/internal/model"
)

func scanHousehold(scanner interface{ Scan(...any) error }) (*model.Household, error) {
	var h model.Household
	var updatedAt sql.NullTime
	err := scanner.Scan(&h.ID, &h.Name, &h.Description, &h.OwnerID, &h.InviteCode, &h.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	h.UpdatedAt = nullTime(updatedAt)
	return &h, nil
}

func scanHouseholdMember(scanner interface{ Scan(...any) error }) (*model.HouseholdMember, error) {
	var m model.HouseholdMember
	var updatedAt sql.NullTime
	err := scanner.Scan(&m.ID, &m.HouseholdID, &m.UserID, &m.Role, &m.JoinedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	m.UpdatedAt = nullTime(updatedAt)
	return &m, nil
}

const householdCols = `id, name, description, owner_id, invite_code, created_at, updated_at`
const householdMemberCols = `id, household_id, user_id, role, joined_at, updated_at`

func getHousehold(ctx context.Context, q queryer, id int64) (*model.Household, error) {
	row := q.QueryRowContext(ctx, `SELECT `+householdCols+` FROM households WHERE id = ?`, id)
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}
	return h, nil
}

func getMember(ctx context.Context, q queryer, householdID, userID int64) (*model.HouseholdMember, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+householdMemberCols+` FROM household_members WHERE household_id = ? AND user_id = ?`,
		householdID, userID,
	)
	m, err := scanHouseholdMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *Store) CreateHousehold(ctx context.Context, name, description string, ownerID int64, inviteCode string) (*model.Household, *model.HouseholdMember, error) {
	var h *model.Household
	var m *model.HouseholdMember
	now := s.timestamp()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO households (name, description, owner_id, invite_code, created_at) VALUES (?, ?, ?, ?, ?)`,
			name, description, ownerID, inviteCode, now,
		)
		if err != nil {
			return fmt.Errorf("insert household: %w", mapErr(err))
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO household_members (household_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
			id, ownerID, string(model.RoleOwner), now,
		); err != nil {
			return fmt.Errorf("insert owner member: %w", mapErr(err))
		}
		if h, err = getHousehold(ctx, tx, id); err != nil {
			return err
		}
		m, err = getMember(ctx, tx, id, ownerID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return h, m, nil
}

func (s *Store) GetHousehold(ctx context.Context, id int64) (*model.Household, error) {
	return getHousehold(ctx, s.db, id)
}

func (s *Store) GetHouseholdByInviteCode(ctx context.Context, code string) (*model.Household, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+householdCols+` FROM households WHERE invite_code = ?`, code)
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household by invite code: %w", err)
	}
	return h, nil
}

func (s *Store) UpdateHousehold(ctx context.Context, id int64, patch model.HouseholdPatch) (*model.Household, error) {
	var name, description any
	if patch.Name != nil {
		name = *patch.Name
	}
	if patch.Description != nil {
		description = *patch.Description
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE households SET name = COALESCE(?, name), description = COALESCE(?, description), updated_at = ? WHERE id = ?`,
		name, description, s.timestamp(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update household: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetHousehold(ctx, id)
}

func (s *Store) SetInviteCode(ctx context.Context, id int64, code string) (*model.Household, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE households SET invite_code = ?, updated_at = ? WHERE id = ?`,
		code, s.timestamp(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("set invite code: %w", mapErr(err))
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetHousehold(ctx, id)
}

func (s *Store) DeleteHousehold(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM purchase_history WHERE household_id = ?`,
			`DELETE FROM items WHERE household_id = ?`,
			`DELETE FROM household_members WHERE household_id = ?`,
			`DELETE FROM households WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return fmt.Errorf("delete household: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) AddMember(ctx context.Context, householdID, userID int64, role model.Role) (*model.HouseholdMember, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO household_members (household_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
		householdID, userID, string(role), s.timestamp(),
	)
	if err != nil {
		return nil, fmt.Errorf("add member: %w", mapErr(err))
	}
	return getMember(ctx, s.db, householdID, userID)
}

func (s *Store) GetMember(ctx context.Context, householdID, userID int64) (*model.HouseholdMember, error) {
	return getMember(ctx, s.db, householdID, userID)
}

func (s *Store) ListMembers(ctx context.Context, householdID int64) ([]model.MemberWithUser, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.id, m.household_id, m.user_id, m.role, m.joined_at, m.updated_at, u.id, u.name, u.email
		 FROM household_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.household_id = ?
		 ORDER BY m.joined_at ASC, m.id ASC`, householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := []model.MemberWithUser{}
	for rows.Next() {
		var mu model.MemberWithUser
		var updatedAt sql.NullTime
		if err := rows.Scan(
			&mu.ID, &mu.HouseholdID, &mu.UserID, &mu.Role, &mu.JoinedAt, &updatedAt,
			&mu.User.ID, &mu.User.Name, &mu.User.Email,
		); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		mu.UpdatedAt = nullTime(updatedAt)
		members = append(members, mu)
	}
	return members, rows.Err()
}

func (s *Store) CountMembers(ctx context.Context, householdID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM household_members WHERE household_id = ?`, householdID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return n, nil
}

func (s *Store) UpdateMemberRole(ctx context.Context, householdID, userID int64, role model.Role) (*model.HouseholdMember, error) {
	if role == model.RoleOwner {
		return nil, errors.New("update member role: ownership changes require a transfer")
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE household_members SET role = ?, updated_at = ?
		 WHERE household_id = ? AND user_id = ? AND role <> 'owner'`,
		string(role), s.timestamp(), householdID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update member role: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	return getMember(ctx, s.db, householdID, userID)
}

func (s *Store) TransferOwnership(ctx context.Context, householdID, fromUserID, toUserID int64) (*model.HouseholdMember, error) {
	var m *model.HouseholdMember
	now := s.timestamp()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		target, err := getMember(ctx, tx, householdID, toUserID)
		if err != nil || target == nil {
			return err
		}
		result, err := tx.ExecContext(ctx,
			`UPDATE household_members SET role = 'admin', updated_at = ?
			 WHERE household_id = ? AND user_id = ? AND role = 'owner'`,
			now, householdID, fromUserID,
		)
		if err != nil {
			return fmt.Errorf("demote owner: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("transfer ownership: user %d does not own household %d", fromUserID, householdID)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE household_members SET role = 'owner', updated_at = ? WHERE household_id = ? AND user_id = ?`,
			now, householdID, toUserID,
		); err != nil {
			return fmt.Errorf("promote owner: %w", mapErr(err))
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE households SET owner_id = ?, updated_at = ? WHERE id = ?`,
			toUserID, now, householdID,
		); err != nil {
			return fmt.Errorf("update household owner: %w", err)
		}
		m, err = getMember(ctx, tx, householdID, toUserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Store) RemoveMember(ctx context.Context, householdID, userID int64) (*model.HouseholdMember, error) {
	var m *model.HouseholdMember
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		m, err = getMember(ctx, tx, householdID, userID)
		if err != nil || m == nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM household_members WHERE household_id = ? AND user_id = ?`,
			householdID, userID,
		); err != nil {
			return fmt.Errorf("remove member: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Store) ListHouseholdsForUser(ctx context.Context, userID int64) ([]model.HouseholdDetails, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT h.id, h.name, h.description, h.owner_id, h.invite_code, h.created_at, h.updated_at, m.role
		 FROM households h
		 JOIN household_members m ON m.household_id = h.id
		 WHERE m.user_id = ?
		 ORDER BY m.joined_at ASC, h.id ASC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list households for user: %w", err)
	}

	var details []model.HouseholdDetails
	for rows.Next() {
		var d model.HouseholdDetails
		var updatedAt sql.NullTime
		if err := rows.Scan(
			&d.ID, &d.Name, &d.Description, &d.OwnerID, &d.InviteCode, &d.CreatedAt, &updatedAt, &d.Role,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan household: %w", err)
		}
		d.UpdatedAt = nullTime(updatedAt)
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list households for user: %w", err)
	}
	// The pool holds a single connection, so members are loaded only after
	// the outer cursor is released.
	rows.Close()

	for i := range details {
		members, err := s.ListMembers(ctx, details[i].ID)
		if err != nil {
			return nil, err
		}
		details[i].Members = members
		details[i].MemberCount = len(members)
	}
	if details == nil {
		details = []model.HouseholdDetails{}
	}
	return details, nil
}
