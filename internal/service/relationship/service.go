// Package relationship persists the symmetric relationship rows and their
// block flags. The friend-request accept path drives FriendTwoUsers inside
// its transaction; everything else here is read-side support for the
// request and group services.
package relationship

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relayim/socialcore/internal/db"
	"github.com/relayim/socialcore/internal/service/relgroup"
)

// Relationship is one directed relationship row. A friendship is two rows,
// one per direction; a block is the blocked flag on the blocker's row.
type Relationship struct {
	OwnerID           int64     `json:"ownerId"`
	RelatedUserID     int64     `json:"relatedUserId"`
	Blocked           bool      `json:"blocked"`
	EstablishmentDate time.Time `json:"establishmentDate"`
}

// FriendResult reports, for each side of a new friendship, the group index
// that received the relationship.
type FriendResult struct {
	RequesterGroupIndex int32 `json:"requesterGroupIndex"`
	RecipientGroupIndex int32 `json:"recipientGroupIndex"`
}

type Service struct {
	db     *pgxpool.Pool
	groups *relgroup.Service
}

func NewService(db *pgxpool.Pool, groups *relgroup.Service) *Service {
	return &Service{db: db, groups: groups}
}

func (s *Service) exec(tx pgx.Tx) db.Executor {
	if tx != nil {
		return tx
	}
	return s.db
}

// IsBlocked reports whether ownerId has blocked relatedUserId.
func (s *Service) IsBlocked(ctx context.Context, ownerID, relatedUserID int64) (bool, error) {
	var blocked bool
	err := s.db.QueryRow(ctx, `
		SELECT blocked FROM user_relationship
		WHERE owner_id = $1 AND related_user_id = $2
	`, ownerID, relatedUserID).Scan(&blocked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return blocked, nil
}

// HasRelationshipAndNotBlocked reports whether an unblocked relationship
// from ownerId to relatedUserId exists.
func (s *Service) HasRelationshipAndNotBlocked(ctx context.Context, ownerID, relatedUserID int64) (bool, error) {
	var blocked bool
	err := s.db.QueryRow(ctx, `
		SELECT blocked FROM user_relationship
		WHERE owner_id = $1 AND related_user_id = $2
	`, ownerID, relatedUserID).Scan(&blocked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return !blocked, nil
}

// FriendTwoUsers establishes the symmetric friendship inside the caller's
// transaction: both relationship rows are upserted with the block flags
// cleared, both default groups are guaranteed to exist, and each user is
// added to the other's default group. Returns the group index that received
// the relationship on each side.
//
// Every mutation threads tx; none may rely on retry-on-duplicate, since a
// transaction cannot be resumed after a constraint violation.
func (s *Service) FriendTwoUsers(ctx context.Context, tx pgx.Tx, requesterID, recipientID int64) (FriendResult, error) {
	if _, err := s.exec(tx).Exec(ctx, `
		INSERT INTO user_relationship (owner_id, related_user_id, blocked, establishment_date)
		VALUES ($1, $2, false, now()), ($2, $1, false, now())
		ON CONFLICT (owner_id, related_user_id) DO UPDATE SET blocked = false
	`, requesterID, recipientID); err != nil {
		return FriendResult{}, err
	}

	for _, ownerID := range []int64{requesterID, recipientID} {
		if err := s.groups.EnsureDefaultGroup(ctx, ownerID, tx); err != nil {
			return FriendResult{}, err
		}
	}
	if _, err := s.groups.AddRelatedUserToGroup(ctx, requesterID, relgroup.DefaultGroupIndex, recipientID, tx); err != nil {
		return FriendResult{}, err
	}
	if _, err := s.groups.AddRelatedUserToGroup(ctx, recipientID, relgroup.DefaultGroupIndex, requesterID, tx); err != nil {
		return FriendResult{}, err
	}

	return FriendResult{
		RequesterGroupIndex: relgroup.DefaultGroupIndex,
		RecipientGroupIndex: relgroup.DefaultGroupIndex,
	}, nil
}

// DeleteOneWayRelationship removes the owner's directed relationship row.
// Used by the group service when the removed-from-all-groups policy says
// the relationship itself goes away.
func (s *Service) DeleteOneWayRelationship(ctx context.Context, tx pgx.Tx, ownerID, relatedUserID int64) error {
	_, err := s.exec(tx).Exec(ctx, `
		DELETE FROM user_relationship
		WHERE owner_id = $1 AND related_user_id = $2
	`, ownerID, relatedUserID)
	return err
}
