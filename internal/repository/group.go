package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"demo-ingest/internal/db"
	"demo-ingest/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type GroupRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewGroupRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *GroupRepository {
	return &GroupRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

func (r *GroupRepository) Create(ctx context.Context, name string, now time.Time) (*domain.Group, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate group id: %w", err)
	}

	err = r.queries.CreateGroup(ctx, db.CreateGroupParams{ID: id, Name: name, CreatedAt: now})
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("group %q: %w", name, domain.ErrGroupExists)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create group %q: %w", name, err)
	}

	return &domain.Group{ID: id, Name: name, CreatedAt: now}, nil
}

func (r *GroupRepository) Get(ctx context.Context, id string) (*domain.Group, error) {
	g, err := r.queries.GetGroup(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group %s: %w", id, err)
	}
	return &domain.Group{ID: g.ID, Name: g.Name, CreatedAt: g.CreatedAt}, nil
}

func (r *GroupRepository) List(ctx context.Context) ([]domain.Group, error) {
	groups, err := r.queries.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	result := make([]domain.Group, len(groups))
	for i, g := range groups {
		result[i] = domain.Group{ID: g.ID, Name: g.Name, CreatedAt: g.CreatedAt}
	}
	return result, nil
}

// AddMembers adds steam ids to a group, ignoring ones already present, and
// returns how many were new.
func (r *GroupRepository) AddMembers(ctx context.Context, groupID string, steamIDs []string, now time.Time) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)

	if _, err := qtx.GetGroup(ctx, groupID); errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrGroupNotFound
	} else if err != nil {
		return 0, fmt.Errorf("failed to get group %s: %w", groupID, err)
	}

	added := 0
	for _, steamID := range steamIDs {
		n, err := qtx.AddGroupMember(ctx, db.AddGroupMemberParams{GroupID: groupID, SteamID: steamID, JoinedAt: now})
		if err != nil {
			return 0, fmt.Errorf("failed to add %s to group %s: %w", steamID, groupID, err)
		}
		added += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit group members: %w", err)
	}
	return added, nil
}

func (r *GroupRepository) Members(ctx context.Context, groupID string) ([]string, error) {
	members, err := r.queries.ListGroupMembers(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members of group %s: %w", groupID, err)
	}
	result := make([]string, len(members))
	for i, m := range members {
		result[i] = m.SteamID
	}
	return result, nil
}
