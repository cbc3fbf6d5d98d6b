package db

import (
	"context"
	"time"
)

const createGroup = `-- name: CreateGroup :exec
INSERT INTO groups (id, name, created_at) VALUES (?, ?, ?)`

type CreateGroupParams struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (q *Queries) CreateGroup(ctx context.Context, arg CreateGroupParams) error {
	_, err := q.db.ExecContext(ctx, createGroup, arg.ID, arg.Name, arg.CreatedAt)
	return err
}

const getGroup = `-- name: GetGroup :one
SELECT id, name, created_at FROM groups WHERE id = ?`

func (q *Queries) GetGroup(ctx context.Context, id string) (Group, error) {
	row := q.db.QueryRowContext(ctx, getGroup, id)
	var i Group
	err := row.Scan(&i.ID, &i.Name, &i.CreatedAt)
	return i, err
}

const listGroups = `-- name: ListGroups :many
SELECT id, name, created_at FROM groups ORDER BY created_at, id`

func (q *Queries) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := q.db.QueryContext(ctx, listGroups)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Group
	for rows.Next() {
		var i Group
		if err := rows.Scan(&i.ID, &i.Name, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const addGroupMember = `-- name: AddGroupMember :execrows
INSERT INTO group_members (group_id, steam_id, joined_at) VALUES (?, ?, ?)
ON CONFLICT (group_id, steam_id) DO NOTHING`

type AddGroupMemberParams struct {
	GroupID  string    `json:"group_id"`
	SteamID  string    `json:"steam_id"`
	JoinedAt time.Time `json:"joined_at"`
}

func (q *Queries) AddGroupMember(ctx context.Context, arg AddGroupMemberParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, addGroupMember, arg.GroupID, arg.SteamID, arg.JoinedAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listGroupMembers = `-- name: ListGroupMembers :many
SELECT group_id, steam_id, joined_at FROM group_members
WHERE group_id = ?
ORDER BY steam_id`

func (q *Queries) ListGroupMembers(ctx context.Context, groupID string) ([]GroupMember, error) {
	rows, err := q.db.QueryContext(ctx, listGroupMembers, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GroupMember
	for rows.Next() {
		var i GroupMember
		if err := rows.Scan(&i.GroupID, &i.SteamID, &i.JoinedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
