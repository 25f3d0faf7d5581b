// Package userversion maintains per-user last-updated timestamps for the
// four incremental-sync streams: sent friend requests, received friend
// requests, relationship groups and group membership.
//
// Version rows are a cache for incremental sync, not authoritative state.
// Writers bump them best-effort after a successful mutation: a failed bump
// is logged and swallowed, never propagated to the owning request.
package userversion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Stream names one of the four version streams. The values double as the
// column names of the user_version table.
type Stream string

const (
	StreamSentRequests       Stream = "sent_requests"
	StreamReceivedRequests   Stream = "received_requests"
	StreamRelationshipGroups Stream = "relationship_groups"
	StreamGroupMembers       Stream = "group_members"
)

// Service is the version registry.
type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

// Query returns the stream's current timestamp for userID, or the zero
// time when the user has no version row yet.
func (s *Service) Query(ctx context.Context, userID int64, stream Stream) (time.Time, error) {
	var version *time.Time
	err := s.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM user_version WHERE user_id = $1`, stream),
		userID).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	if version == nil {
		return time.Time{}, nil
	}
	return *version, nil
}

// Update advances the stream's timestamp for userID to now. Concurrent
// updaters are last-writer-wins on wall clock; GREATEST keeps the stored
// value non-decreasing.
func (s *Service) Update(ctx context.Context, userID int64, stream Stream) error {
	return s.UpdateAll(ctx, []int64{userID}, stream)
}

// UpdateAll advances the stream for every given user in one statement.
func (s *Service) UpdateAll(ctx context.Context, userIDs []int64, stream Stream) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx, fmt.Sprintf(`
		INSERT INTO user_version (user_id, %[1]s)
		SELECT unnest($1::bigint[]), now()
		ON CONFLICT (user_id) DO UPDATE SET
			%[1]s = GREATEST(user_version.%[1]s, excluded.%[1]s)
	`, stream), userIDs)
	return err
}

// UpdateBestEffort bumps the stream and logs instead of failing: version
// bumps must never fail the owning mutation.
func (s *Service) UpdateBestEffort(ctx context.Context, userID int64, stream Stream) {
	if err := s.Update(ctx, userID, stream); err != nil {
		log.Error().Err(err).
			Int64("userId", userID).
			Str("stream", string(stream)).
			Msg("failed to update user version")
	}
}

// UpdateAllBestEffort is UpdateBestEffort for a set of users.
func (s *Service) UpdateAllBestEffort(ctx context.Context, userIDs []int64, stream Stream) {
	if err := s.UpdateAll(ctx, userIDs, stream); err != nil {
		log.Error().Err(err).
			Ints64("userIds", userIDs).
			Str("stream", string(stream)).
			Msg("failed to update user versions")
	}
}
