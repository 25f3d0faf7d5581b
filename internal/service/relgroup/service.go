// Package relgroup owns relationship groups: the user-owned partitioning of
// confirmed relationships into labelled buckets. Every user has an
// indestructible default group with index 0.
package relgroup

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relayim/socialcore/internal/db"
	"github.com/relayim/socialcore/internal/service/userversion"
	"github.com/relayim/socialcore/internal/status"
)

// DefaultGroupIndex is the index of the default relationship group. It
// exists for every user and cannot be deleted.
const DefaultGroupIndex = 0

// Group is one named bucket of a user's relationships.
type Group struct {
	OwnerID      int64     `json:"ownerId"`
	Index        int32     `json:"index"`
	Name         string    `json:"name"`
	CreationDate time.Time `json:"creationDate"`
}

// GroupKey identifies a group.
type GroupKey struct {
	OwnerID int64 `json:"ownerId"`
	Index   int32 `json:"index"`
}

// RelationshipKey identifies one directed relationship.
type RelationshipKey struct {
	OwnerID       int64 `json:"ownerId"`
	RelatedUserID int64 `json:"relatedUserId"`
}

// DeleteResult aggregates the outcome of a (possibly fanned-out) delete.
// Matched counts the rows the statements addressed; for plain deletes it
// equals Deleted.
type DeleteResult struct {
	Deleted int64 `json:"deleted"`
	Matched int64 `json:"matched"`
}

// RelationshipDeleter is the slice of the relationship service this package
// needs. It is obtained lazily through a provider to break the circular
// dependency between the two services.
type RelationshipDeleter interface {
	DeleteOneWayRelationship(ctx context.Context, tx pgx.Tx, ownerID, relatedUserID int64) error
}

// Service owns groups and their members.
type Service struct {
	db       *pgxpool.Pool
	versions *userversion.Service

	// relationships yields the relationship service on first use. Only the
	// delete-when-removed-from-all-groups policy touches it.
	relationships func() RelationshipDeleter

	deleteRelationshipWhenRemovedFromAllGroups func() bool
}

// NewService builds the group service. relationshipProvider may not be
// invoked before the full service graph is wired. deleteWhenRemovedFromAll
// reads the live policy knob.
func NewService(
	db *pgxpool.Pool,
	versions *userversion.Service,
	relationshipProvider func() RelationshipDeleter,
	deleteWhenRemovedFromAll func() bool,
) *Service {
	return &Service{
		db:            db,
		versions:      versions,
		relationships: relationshipProvider,
		deleteRelationshipWhenRemovedFromAllGroups: deleteWhenRemovedFromAll,
	}
}

func (s *Service) exec(tx pgx.Tx) db.Executor {
	if tx != nil {
		return tx
	}
	return s.db
}

// CreateGroup creates a group for ownerId. When groupIndex is nil a random
// positive 31-bit index is chosen and the insert is retried on duplicate
// key, but only outside a transaction: a transaction cannot be resumed
// after a constraint violation, so with a live tx a duplicate is fatal.
func (s *Service) CreateGroup(
	ctx context.Context,
	ownerID int64,
	groupIndex *int32,
	name string,
	creationDate *time.Time,
	tx pgx.Tx,
) (*Group, error) {
	if name == "" {
		return nil, status.Newf(status.IllegalArgument, "the group name must not be empty")
	}
	now := time.Now()
	created := now
	if creationDate != nil && creationDate.Before(now) {
		created = *creationDate
	}

	for {
		index := int32(0)
		if groupIndex != nil {
			index = *groupIndex
		} else {
			index = rand.Int31n(1<<31-1) + 1
		}
		group := &Group{OwnerID: ownerID, Index: index, Name: name, CreationDate: created}
		_, err := s.exec(tx).Exec(ctx, `
			INSERT INTO user_relationship_group (owner_id, group_index, name, creation_date)
			VALUES ($1, $2, $3, $4)
		`, ownerID, index, name, created)
		if err == nil {
			s.versions.UpdateBestEffort(ctx, ownerID, userversion.StreamRelationshipGroups)
			return group, nil
		}
		if groupIndex == nil && tx == nil && db.IsDuplicateKey(err) {
			continue
		}
		return nil, err
	}
}

// EnsureDefaultGroup creates the default group for ownerId if it does not
// exist yet.
func (s *Service) EnsureDefaultGroup(ctx context.Context, ownerID int64, tx pgx.Tx) error {
	_, err := s.exec(tx).Exec(ctx, `
		INSERT INTO user_relationship_group (owner_id, group_index, name, creation_date)
		VALUES ($1, $2, '', now())
		ON CONFLICT (owner_id, group_index) DO NOTHING
	`, ownerID, DefaultGroupIndex)
	return err
}

// QueryGroups returns all groups of ownerId.
func (s *Service) QueryGroups(ctx context.Context, ownerID int64) ([]Group, error) {
	rows, err := s.db.Query(ctx, `
		SELECT owner_id, group_index, name, creation_date
		FROM user_relationship_group
		WHERE owner_id = $1
		ORDER BY group_index
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanGroups(rows)
}

// GroupsWithVersion is the incremental-sync payload for a user's groups.
type GroupsWithVersion struct {
	Groups          []Group   `json:"groups"`
	LastUpdatedDate time.Time `json:"lastUpdatedDate"`
}

// QueryGroupsWithVersion short-circuits with ALREADY_UP_TO_DATE when the
// client's lastUpdatedDate is at or past the server version.
func (s *Service) QueryGroupsWithVersion(ctx context.Context, ownerID int64, lastUpdatedDate *time.Time) (*GroupsWithVersion, error) {
	version, err := s.versions.Query(ctx, ownerID, userversion.StreamRelationshipGroups)
	if err != nil {
		return nil, err
	}
	if version.IsZero() || (lastUpdatedDate != nil && !lastUpdatedDate.Before(version)) {
		return nil, status.New(status.AlreadyUpToDate)
	}
	groups, err := s.QueryGroups(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return &GroupsWithVersion{Groups: groups, LastUpdatedDate: version}, nil
}

// QueryGroupIndexes returns the indexes of every group of ownerId that
// relatedUserId belongs to.
func (s *Service) QueryGroupIndexes(ctx context.Context, ownerID, relatedUserID int64) ([]int32, error) {
	return s.queryGroupIndexes(ctx, ownerID, relatedUserID, nil)
}

func (s *Service) queryGroupIndexes(ctx context.Context, ownerID, relatedUserID int64, tx pgx.Tx) ([]int32, error) {
	rows, err := s.exec(tx).Query(ctx, `
		SELECT group_index
		FROM user_relationship_group_member
		WHERE owner_id = $1 AND related_user_id = $2
		ORDER BY group_index
	`, ownerID, relatedUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []int32
	for rows.Next() {
		var index int32
		if err := rows.Scan(&index); err != nil {
			return nil, err
		}
		indexes = append(indexes, index)
	}
	return indexes, rows.Err()
}

// QueryGroupMemberIDs returns the related user IDs in one group.
func (s *Service) QueryGroupMemberIDs(ctx context.Context, ownerID int64, groupIndex int32) ([]int64, error) {
	rows, err := s.db.Query(ctx, `
		SELECT related_user_id
		FROM user_relationship_group_member
		WHERE owner_id = $1 AND group_index = $2
		ORDER BY related_user_id
	`, ownerID, groupIndex)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateGroupName renames one group and bumps the owner's groups version.
func (s *Service) UpdateGroupName(ctx context.Context, ownerID int64, groupIndex int32, newName string) error {
	if newName == "" {
		return status.Newf(status.IllegalArgument, "the group name must not be empty")
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE user_relationship_group SET name = $3
		WHERE owner_id = $1 AND group_index = $2
	`, ownerID, groupIndex, newName)
	if err != nil {
		return err
	}
	// A rename of a nonexistent group must not force clients to resync.
	if tag.RowsAffected() > 0 {
		s.versions.UpdateBestEffort(ctx, ownerID, userversion.StreamRelationshipGroups)
	}
	return nil
}

// UpdateGroups is the admin batch update of (name, creationDate) for a set
// of group keys. A call with nothing to set is an acknowledged no-op.
func (s *Service) UpdateGroups(ctx context.Context, keys []GroupKey, name *string, creationDate *time.Time) error {
	if len(keys) == 0 {
		return status.Newf(status.IllegalArgument, "keys must not be empty")
	}
	if name == nil && creationDate == nil {
		return nil
	}
	owners := make([]int64, len(keys))
	indexes := make([]int32, len(keys))
	for i, key := range keys {
		owners[i] = key.OwnerID
		indexes[i] = key.Index
	}
	_, err := s.db.Exec(ctx, `
		UPDATE user_relationship_group g SET
			name          = COALESCE($3, g.name),
			creation_date = COALESCE($4, g.creation_date)
		FROM unnest($1::bigint[], $2::int[]) AS k(owner_id, group_index)
		WHERE g.owner_id = k.owner_id AND g.group_index = k.group_index
	`, owners, indexes, name, creationDate)
	return err
}

// AddRelatedUserToGroup inserts relatedUserId into the group, reporting
// whether a new member row was created. The owner's version is bumped
// best-effort only when the membership changed.
func (s *Service) AddRelatedUserToGroup(
	ctx context.Context,
	ownerID int64,
	groupIndex int32,
	relatedUserID int64,
	tx pgx.Tx,
) (bool, error) {
	tag, err := s.exec(tx).Exec(ctx, `
		INSERT INTO user_relationship_group_member
			(owner_id, group_index, related_user_id, join_date)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (owner_id, group_index, related_user_id) DO NOTHING
	`, ownerID, groupIndex, relatedUserID)
	if err != nil {
		return false, err
	}
	added := tag.RowsAffected() > 0
	if added {
		s.versions.UpdateBestEffort(ctx, ownerID, userversion.StreamRelationshipGroups)
	}
	return added, nil
}

// UpsertGroupMember dispatches the add/move/remove cases for one member.
// It returns the index of the group that now holds the member, or nil when
// nothing changed.
func (s *Service) UpsertGroupMember(
	ctx context.Context,
	ownerID int64,
	relatedUserID int64,
	newGroupIndex *int32,
	deleteGroupIndex *int32,
	tx pgx.Tx,
) (*int32, error) {
	if newGroupIndex != nil {
		if deleteGroupIndex != nil {
			if *newGroupIndex == *deleteGroupIndex {
				return nil, nil
			}
			if err := s.MoveRelatedUserToNewGroup(ctx, ownerID, relatedUserID,
				*deleteGroupIndex, *newGroupIndex, false, tx); err != nil {
				return nil, err
			}
			return newGroupIndex, nil
		}
		added, err := s.AddRelatedUserToGroup(ctx, ownerID, *newGroupIndex, relatedUserID, tx)
		if err != nil {
			return nil, err
		}
		if !added {
			return nil, nil
		}
		return newGroupIndex, nil
	}
	if deleteGroupIndex != nil && *deleteGroupIndex != DefaultGroupIndex {
		if s.deleteRelationshipWhenRemovedFromAllGroups() {
			return nil, s.removeFromLastGroup(ctx, ownerID, relatedUserID, *deleteGroupIndex, tx)
		}
		target := int32(DefaultGroupIndex)
		if err := s.MoveRelatedUserToNewGroup(ctx, ownerID, relatedUserID,
			*deleteGroupIndex, target, true, tx); err != nil {
			return nil, err
		}
		return &target, nil
	}
	return nil, nil
}

// removeFromLastGroup deletes the membership and, when it was the member's
// last group of this owner, the relationship itself.
func (s *Service) removeFromLastGroup(ctx context.Context, ownerID, relatedUserID int64, groupIndex int32, tx pgx.Tx) error {
	if _, err := s.exec(tx).Exec(ctx, `
		DELETE FROM user_relationship_group_member
		WHERE owner_id = $1 AND group_index = $2 AND related_user_id = $3
	`, ownerID, groupIndex, relatedUserID); err != nil {
		return err
	}
	// The read must run on the same session or it cannot see the
	// uncommitted delete above.
	indexes, err := s.queryGroupIndexes(ctx, ownerID, relatedUserID, tx)
	if err != nil {
		return err
	}
	if len(indexes) == 0 {
		if err := s.relationships().DeleteOneWayRelationship(ctx, tx, ownerID, relatedUserID); err != nil {
			return err
		}
	}
	s.versions.UpdateBestEffort(ctx, ownerID, userversion.StreamRelationshipGroups)
	return nil
}

// MoveRelatedUserToNewGroup moves a member between two groups of the same
// owner. The insert runs before the delete so a concurrent reader never
// observes the member as absent from every group.
func (s *Service) MoveRelatedUserToNewGroup(
	ctx context.Context,
	ownerID int64,
	relatedUserID int64,
	currentGroupIndex int32,
	targetGroupIndex int32,
	suppressIfAlreadyExistsInTargetGroup bool,
	tx pgx.Tx,
) error {
	if currentGroupIndex == targetGroupIndex {
		return nil
	}
	sql := `
		INSERT INTO user_relationship_group_member
			(owner_id, group_index, related_user_id, join_date)
		VALUES ($1, $2, $3, now())
	`
	if suppressIfAlreadyExistsInTargetGroup {
		sql += ` ON CONFLICT (owner_id, group_index, related_user_id) DO NOTHING`
	}
	if _, err := s.exec(tx).Exec(ctx, sql, ownerID, targetGroupIndex, relatedUserID); err != nil {
		return err
	}
	if _, err := s.exec(tx).Exec(ctx, `
		DELETE FROM user_relationship_group_member
		WHERE owner_id = $1 AND group_index = $2 AND related_user_id = $3
	`, ownerID, currentGroupIndex, relatedUserID); err != nil {
		return err
	}
	s.versions.UpdateBestEffort(ctx, ownerID, userversion.StreamRelationshipGroups)
	return nil
}

// DeleteGroupAndMoveMembers deletes a non-default group after mirroring its
// members into newGroupIndex. Deliberately not transactional: every step is
// idempotent, so a crash mid-way is recoverable by re-running.
func (s *Service) DeleteGroupAndMoveMembers(ctx context.Context, ownerID int64, deleteGroupIndex, newGroupIndex int32) error {
	if deleteGroupIndex == DefaultGroupIndex {
		return status.Newf(status.IllegalArgument, "the default relationship group cannot be deleted")
	}
	if deleteGroupIndex == newGroupIndex {
		return nil
	}
	if _, err := s.db.Exec(ctx, `
		INSERT INTO user_relationship_group_member
			(owner_id, group_index, related_user_id, join_date)
		SELECT owner_id, $3, related_user_id, now()
		FROM user_relationship_group_member
		WHERE owner_id = $1 AND group_index = $2
		ON CONFLICT (owner_id, group_index, related_user_id) DO NOTHING
	`, ownerID, deleteGroupIndex, newGroupIndex); err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, `
		DELETE FROM user_relationship_group_member
		WHERE owner_id = $1 AND group_index = $2
	`, ownerID, deleteGroupIndex); err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, `
		DELETE FROM user_relationship_group
		WHERE owner_id = $1 AND group_index = $2
	`, ownerID, deleteGroupIndex); err != nil {
		return err
	}
	s.versions.UpdateBestEffort(ctx, ownerID, userversion.StreamRelationshipGroups)
	return nil
}

// DeleteRelatedUsersFromAllGroups removes the given relationships from
// every group of their owners. Single-owner batches run as one statement;
// multi-owner batches fan out concurrently on the pool and merge their
// results. With a live session the fan-out is sequential.
func (s *Service) DeleteRelatedUsersFromAllGroups(
	ctx context.Context,
	keys []RelationshipKey,
	tx pgx.Tx,
	updateGroupMembersVersion bool,
) (DeleteResult, error) {
	if len(keys) == 0 {
		return DeleteResult{}, status.Newf(status.IllegalArgument, "keys must not be empty")
	}

	ownerToRelated := make(map[int64][]int64, len(keys))
	for _, key := range keys {
		ownerToRelated[key.OwnerID] = append(ownerToRelated[key.OwnerID], key.RelatedUserID)
	}

	var result DeleteResult
	if len(ownerToRelated) == 1 || tx != nil {
		// Single owner, or a live session: a pgx.Tx is a single wire
		// connection and must never be shared across goroutines.
		for ownerID, relatedIDs := range ownerToRelated {
			deleted, err := s.deleteRelatedUsersOfOwner(ctx, ownerID, relatedIDs, tx)
			if err != nil {
				return DeleteResult{}, err
			}
			result.Deleted += deleted
			result.Matched += deleted
		}
	} else {
		type outcome struct {
			deleted int64
			err     error
		}
		outcomes := make(chan outcome, len(ownerToRelated))
		for ownerID, relatedIDs := range ownerToRelated {
			go func(ownerID int64, relatedIDs []int64) {
				deleted, err := s.deleteRelatedUsersOfOwner(ctx, ownerID, relatedIDs, nil)
				outcomes <- outcome{deleted: deleted, err: err}
			}(ownerID, relatedIDs)
		}
		var firstErr error
		for range ownerToRelated {
			o := <-outcomes
			if o.err != nil && firstErr == nil {
				firstErr = o.err
			}
			result.Deleted += o.deleted
			result.Matched += o.deleted
		}
		if firstErr != nil {
			return DeleteResult{}, firstErr
		}
	}

	if updateGroupMembersVersion {
		owners := make([]int64, 0, len(ownerToRelated))
		for ownerID := range ownerToRelated {
			owners = append(owners, ownerID)
		}
		s.versions.UpdateAllBestEffort(ctx, owners, userversion.StreamGroupMembers)
	}
	return result, nil
}

func (s *Service) deleteRelatedUsersOfOwner(ctx context.Context, ownerID int64, relatedIDs []int64, tx pgx.Tx) (int64, error) {
	tag, err := s.exec(tx).Exec(ctx, `
		DELETE FROM user_relationship_group_member
		WHERE owner_id = $1 AND related_user_id = ANY($2)
	`, ownerID, relatedIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteAllGroups removes every group of the given owners, used when
// accounts are purged.
func (s *Service) DeleteAllGroups(ctx context.Context, ownerIDs []int64, tx pgx.Tx, updateGroupsVersion bool) (DeleteResult, error) {
	if len(ownerIDs) == 0 {
		return DeleteResult{}, status.Newf(status.IllegalArgument, "ownerIds must not be empty")
	}
	tag, err := s.exec(tx).Exec(ctx, `
		DELETE FROM user_relationship_group WHERE owner_id = ANY($1)
	`, ownerIDs)
	if err != nil {
		return DeleteResult{}, err
	}
	if _, err := s.exec(tx).Exec(ctx, `
		DELETE FROM user_relationship_group_member WHERE owner_id = ANY($1)
	`, ownerIDs); err != nil {
		return DeleteResult{}, err
	}
	if updateGroupsVersion {
		s.versions.UpdateAllBestEffort(ctx, ownerIDs, userversion.StreamRelationshipGroups)
	}
	deleted := tag.RowsAffected()
	return DeleteResult{Deleted: deleted, Matched: deleted}, nil
}

// GroupFilter narrows admin group queries. Nil / empty fields are ignored.
type GroupFilter struct {
	OwnerIDs          []int64
	Indexes           []int32
	Names             []string
	CreationDateStart *time.Time
	CreationDateEnd   *time.Time
	Page              int
	Size              int
}

// QueryGroupsByFilter is the admin list query.
func (s *Service) QueryGroupsByFilter(ctx context.Context, filter GroupFilter) ([]Group, error) {
	sql, args := filter.buildWhere(`
		SELECT owner_id, group_index, name, creation_date
		FROM user_relationship_group
	`)
	sql += ` ORDER BY owner_id, group_index`
	if filter.Size > 0 {
		sql += ` LIMIT ` + strconv.Itoa(filter.Size) + ` OFFSET ` + strconv.Itoa(filter.Page*filter.Size)
	}
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanGroups(rows)
}

// CountGroupsByFilter is the admin count query.
func (s *Service) CountGroupsByFilter(ctx context.Context, filter GroupFilter) (int64, error) {
	sql, args := filter.buildWhere(`SELECT COUNT(*) FROM user_relationship_group`)
	var count int64
	err := s.db.QueryRow(ctx, sql, args...).Scan(&count)
	return count, err
}

// CountMembers counts members across owners and group indexes.
func (s *Service) CountMembers(ctx context.Context, ownerIDs []int64, groupIndexes []int32) (int64, error) {
	sql := `SELECT COUNT(*) FROM user_relationship_group_member WHERE true`
	args := []any{}
	if len(ownerIDs) > 0 {
		args = append(args, ownerIDs)
		sql += ` AND owner_id = ANY($` + strconv.Itoa(len(args)) + `)`
	}
	if len(groupIndexes) > 0 {
		args = append(args, groupIndexes)
		sql += ` AND group_index = ANY($` + strconv.Itoa(len(args)) + `)`
	}
	var count int64
	err := s.db.QueryRow(ctx, sql, args...).Scan(&count)
	return count, err
}

func (f GroupFilter) buildWhere(base string) (string, []any) {
	sql := base + ` WHERE true`
	args := []any{}
	if len(f.OwnerIDs) > 0 {
		args = append(args, f.OwnerIDs)
		sql += ` AND owner_id = ANY($` + strconv.Itoa(len(args)) + `)`
	}
	if len(f.Indexes) > 0 {
		args = append(args, f.Indexes)
		sql += ` AND group_index = ANY($` + strconv.Itoa(len(args)) + `)`
	}
	if len(f.Names) > 0 {
		args = append(args, f.Names)
		sql += ` AND name = ANY($` + strconv.Itoa(len(args)) + `)`
	}
	if f.CreationDateStart != nil {
		args = append(args, *f.CreationDateStart)
		sql += ` AND creation_date >= $` + strconv.Itoa(len(args))
	}
	if f.CreationDateEnd != nil {
		args = append(args, *f.CreationDateEnd)
		sql += ` AND creation_date < $` + strconv.Itoa(len(args))
	}
	return sql, args
}

func scanGroups(rows pgx.Rows) ([]Group, error) {
	groups := make([]Group, 0, 8)
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.OwnerID, &g.Index, &g.Name, &g.CreationDate); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}
