package store

import (
	"database/sql"
	"fmt"

	"github.com/rosevale/habitloop/internal/model"
)

type GroupStore struct {
	db *sql.DB
}

func NewGroupStore(db *sql.DB) *GroupStore {
	return &GroupStore{db: db}
}

func scanGroup(scanner interface{ Scan(...any) error }) (*model.Group, error) {
	var g model.Group
	var personal int
	err := scanner.Scan(&g.ID, &g.Name, &personal, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	g.Personal = personal != 0
	return &g, nil
}

func scanGroupMember(scanner interface{ Scan(...any) error }) (*model.GroupMember, error) {
	var m model.GroupMember
	err := scanner.Scan(&m.ID, &m.GroupID, &m.UserID, &m.Role, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const groupCols = `id, name, personal, created_at, updated_at`
const groupMemberCols = `id, group_id, user_id, role, created_at, updated_at`

func (s *GroupStore) Create(name string, personal bool) (*model.Group, error) {
	var p int
	if personal {
		p = 1
	}
	result, err := s.db.Exec(`INSERT INTO groups (name, personal) VALUES (?, ?)`, name, p)
	if err != nil {
		return nil, fmt.Errorf("insert group: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *GroupStore) GetByID(id int64) (*model.Group, error) {
	row := s.db.QueryRow(`SELECT `+groupCols+` FROM groups WHERE id = ?`, id)
	g, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

func (s *GroupStore) Update(id int64, name string) (*model.Group, error) {
	_, err := s.db.Exec(`UPDATE groups SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return nil, fmt.Errorf("update group: %w", err)
	}
	return s.GetByID(id)
}

func (s *GroupStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

func (s *GroupStore) AddMember(groupID, userID int64, role string) (*model.GroupMember, error) {
	result, err := s.db.Exec(
		`INSERT INTO group_members (group_id, user_id, role) VALUES (?, ?, ?)`,
		groupID, userID, role,
	)
	if err != nil {
		return nil, fmt.Errorf("add group member: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+groupMemberCols+` FROM group_members WHERE id = ?`, id)
	return scanGroupMember(row)
}

func (s *GroupStore) GetMember(groupID, userID int64) (*model.GroupMember, error) {
	row := s.db.QueryRow(
		`SELECT `+groupMemberCols+` FROM group_members WHERE group_id = ? AND user_id = ?`,
		groupID, userID,
	)
	m, err := scanGroupMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group member: %w", err)
	}
	return m, nil
}

func (s *GroupStore) ListMembers(groupID int64) ([]model.GroupMember, error) {
	rows, err := s.db.Query(
		`SELECT `+groupMemberCols+` FROM group_members WHERE group_id = ? ORDER BY created_at ASC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	defer rows.Close()

	var members []model.GroupMember
	for rows.Next() {
		m, err := scanGroupMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *GroupStore) RemoveMember(groupID, userID int64) error {
	_, err := s.db.Exec(`DELETE FROM group_members WHERE group_id = ? AND user_id = ?`, groupID, userID)
	if err != nil {
		return fmt.Errorf("remove group member: %w", err)
	}
	return nil
}

func (s *GroupStore) CountMembers(groupID int64) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM group_members WHERE group_id = ?`, groupID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count group members: %w", err)
	}
	return count, nil
}

func (s *GroupStore) ListGroupsForUser(userID int64) ([]model.Group, error) {
	rows, err := s.db.Query(
		`SELECT g.id, g.name, g.personal, g.created_at, g.updated_at
		 FROM groups g JOIN group_members m ON m.group_id = g.id
		 WHERE m.user_id = ? ORDER BY g.created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list groups for user: %w", err)
	}
	defer rows.Close()

	var groups []model.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, *g)
	}
	return groups, rows.Err()
}
