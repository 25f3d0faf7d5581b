// Package friendrequest owns the friend-request lifecycle: creation,
// recall, handling, incremental-sync queries and the admin batch surface.
package friendrequest

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/relayim/socialcore/internal/config"
	"github.com/relayim/socialcore/internal/db"
	"github.com/relayim/socialcore/internal/idgen"
	"github.com/relayim/socialcore/internal/sched"
	"github.com/relayim/socialcore/internal/service/relationship"
	"github.com/relayim/socialcore/internal/service/userversion"
	"github.com/relayim/socialcore/internal/status"
)

const cleanupTaskName = "expiredFriendRequestsCleanup"

type Service struct {
	db            *pgxpool.Pool
	cfg           *config.Manager
	ids           *idgen.Generator
	versions      *userversion.Service
	relationships *relationship.Service
}

func NewService(
	pool *pgxpool.Pool,
	cfg *config.Manager,
	ids *idgen.Generator,
	versions *userversion.Service,
	relationships *relationship.Service,
) *Service {
	return &Service{
		db:            pool,
		cfg:           cfg,
		ids:           ids,
		versions:      versions,
		relationships: relationships,
	}
}

// RegisterCleanupTask arms the expired-requests cleanup cron and re-arms it
// whenever the configuration snapshot is replaced. The job runs only on the
// cluster leader, only when enabled, and only while expiry is configured.
func (s *Service) RegisterCleanupTask(tasks *sched.Manager, isLeader func() bool) {
	s.cfg.OnChange(func(cfg *config.Config) {
		err := tasks.Reschedule(cleanupTaskName, cfg.FriendRequest.ExpiredRequestsCleanupCron, func() {
			current := s.cfg.Current().FriendRequest
			expireAfter := time.Duration(current.ExpireAfterSeconds) * time.Second
			if !isLeader() || !current.DeleteExpiredRequestsWhenCronTriggered || expireAfter <= 0 {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			deleted, err := s.RemoveAllExpired(ctx, time.Now().Add(-expireAfter))
			if err != nil {
				log.Error().Err(err).Msg("failed to remove expired friend requests")
				return
			}
			log.Info().Int64("deleted", deleted).Msg("removed expired friend requests")
		})
		if err != nil {
			log.Error().Err(err).
				Str("cron", cfg.FriendRequest.ExpiredRequestsCleanupCron).
				Msg("failed to schedule expired friend requests cleanup")
		}
	})
}

func (s *Service) maxContentLength() int {
	if n := s.cfg.Current().FriendRequest.MaxContentLength; n > 0 {
		return n
	}
	return math.MaxInt
}

func (s *Service) maxReasonLength() int {
	if n := s.cfg.Current().FriendRequest.MaxResponseReasonLength; n > 0 {
		return n
	}
	return math.MaxInt
}

func (s *Service) expireAfter() time.Duration {
	return time.Duration(s.cfg.Current().FriendRequest.ExpireAfterSeconds) * time.Second
}

// CreateParams are the inputs of the admin create path. Nil optionals take
// their documented defaults.
type CreateParams struct {
	ID           *int64
	RequesterID  int64
	RecipientID  int64
	Content      string
	Status       *Status
	CreationDate *time.Time
	ResponseDate *time.Time
	Reason       *string
}

// Create persists a new request and bumps both parties' request-stream
// versions best-effort.
func (s *Service) Create(ctx context.Context, p CreateParams) (*FriendRequest, error) {
	if p.RequesterID == p.RecipientID {
		return nil, status.Newf(status.IllegalArgument,
			"the requester ID must not be equal to the recipient ID")
	}
	if len(p.Content) > s.maxContentLength() {
		return nil, status.Newf(status.IllegalArgument,
			"the content length must not exceed "+strconv.Itoa(s.maxContentLength()))
	}
	if p.Reason != nil && len(*p.Reason) > s.maxReasonLength() {
		return nil, status.Newf(status.IllegalArgument,
			"the reason length must not exceed "+strconv.Itoa(s.maxReasonLength()))
	}
	if p.Status != nil && !p.Status.Valid() {
		return nil, status.Newf(status.IllegalArgument, "invalid request status")
	}
	now := time.Now()
	if p.ResponseDate != nil && p.ResponseDate.After(now) {
		return nil, status.Newf(status.IllegalArgument, "the response date must not be in the future")
	}

	id := int64(0)
	if p.ID != nil {
		id = *p.ID
	} else {
		id = s.ids.NextLargeGapID(idgen.ServiceFriendRequest)
	}
	creationDate := now
	if p.CreationDate != nil && p.CreationDate.Before(now) {
		creationDate = *p.CreationDate
	}
	statusValue := StatusPending
	if p.Status != nil {
		statusValue = *p.Status
	}
	responseDate := responseDateForNewRecord(now, statusValue, creationDate, p.ResponseDate, s.expireAfter())

	request := &FriendRequest{
		ID:           id,
		RequesterID:  p.RequesterID,
		RecipientID:  p.RecipientID,
		Content:      p.Content,
		Status:       statusValue,
		Reason:       p.Reason,
		CreationDate: creationDate,
		ResponseDate: responseDate,
	}
	if _, err := s.db.Exec(ctx, `
		INSERT INTO user_friend_request
			(id, requester_id, recipient_id, content, status, reason, creation_date, response_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, request.ID, request.RequesterID, request.RecipientID, request.Content,
		request.Status, request.Reason, request.CreationDate, request.ResponseDate); err != nil {
		return nil, err
	}

	s.versions.UpdateBestEffort(ctx, p.RecipientID, userversion.StreamReceivedRequests)
	s.versions.UpdateBestEffort(ctx, p.RequesterID, userversion.StreamSentRequests)
	return request, nil
}

// AuthAndCreate is the user path: the requester must not be blocked by the
// recipient, and an existing request between the two may prohibit a new one
// depending on the resend policy.
func (s *Service) AuthAndCreate(ctx context.Context, requesterID, recipientID int64, content *string, creationDate time.Time) (*FriendRequest, error) {
	if requesterID == recipientID {
		return nil, status.Newf(status.IllegalArgument,
			"the requester ID must not be equal to the recipient ID")
	}
	blocked, err := s.relationships.IsBlocked(ctx, recipientID, requesterID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, status.New(status.BlockedUserSendFriendRequest)
	}

	// A request may be created even when an accepted one exists, because
	// relationships can be deleted and rebuilt.
	var exists bool
	if s.cfg.Current().FriendRequest.AllowSendRequestAfterDeclinedOrIgnoredOrExpired {
		exists, err = s.hasPendingRequest(ctx, requesterID, recipientID)
	} else {
		exists, err = s.hasPendingOrDeclinedOrIgnoredOrExpiredRequest(ctx, requesterID, recipientID)
	}
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, status.New(status.CreateExistingFriendRequest)
	}

	finalContent := ""
	if content != nil {
		finalContent = *content
	}
	pending := StatusPending
	return s.Create(ctx, CreateParams{
		RequesterID:  requesterID,
		RecipientID:  recipientID,
		Content:      finalContent,
		Status:       &pending,
		CreationDate: &creationDate,
	})
}

// hasPendingRequest applies the expiry projection: a stored PENDING row
// past its expiry window counts as EXPIRED, not PENDING.
func (s *Service) hasPendingRequest(ctx context.Context, requesterID, recipientID int64) (bool, error) {
	expireAfter := s.expireAfter()
	sql := `
		SELECT EXISTS (
			SELECT 1 FROM user_friend_request
			WHERE requester_id = $1 AND recipient_id = $2 AND status = 'PENDING'
	`
	args := []any{requesterID, recipientID}
	if expireAfter > 0 {
		sql += ` AND creation_date > $3`
		args = append(args, time.Now().Add(-expireAfter))
	}
	sql += `)`
	var exists bool
	err := s.db.QueryRow(ctx, sql, args...).Scan(&exists)
	return exists, err
}

// hasPendingOrDeclinedOrIgnoredOrExpiredRequest needs no expiry predicate:
// an expired request is a stored PENDING row, which already prohibits.
func (s *Service) hasPendingOrDeclinedOrIgnoredOrExpiredRequest(ctx context.Context, requesterID, recipientID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_friend_request
			WHERE requester_id = $1 AND recipient_id = $2
			  AND status IN ('PENDING', 'DECLINED', 'IGNORED', 'EXPIRED')
		)
	`, requesterID, recipientID).Scan(&exists)
	return exists, err
}

// authFields is the projection used by the authorization checks.
type authFields struct {
	RequesterID  int64
	RecipientID  int64
	CreationDate time.Time
	Status       Status
}

func (s *Service) findAuthFields(ctx context.Context, requestID int64) (*authFields, error) {
	var f authFields
	err := s.db.QueryRow(ctx, `
		SELECT requester_id, recipient_id, creation_date, status
		FROM user_friend_request
		WHERE id = $1
	`, requestID).Scan(&f.RequesterID, &f.RecipientID, &f.CreationDate, &f.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

// AuthAndRecall cancels the caller's own pending request. "No such request"
// and "not the sender" return the same code so the caller cannot probe for
// the existence or status of requests they do not own.
func (s *Service) AuthAndRecall(ctx context.Context, callerID, requestID int64) (*FriendRequest, error) {
	if !s.cfg.Current().FriendRequest.AllowRecallPendingFriendRequestBySender {
		return nil, status.New(status.RecallingFriendRequestDisabled)
	}
	fields, err := s.findAuthFields(ctx, requestID)
	if err != nil {
		return nil, err
	}
	// Authorization before existence: the caller must prove they are the
	// sender before learning anything about the request.
	if fields == nil || fields.RequesterID != callerID {
		return nil, status.New(status.NotSenderToRecallFriendRequest)
	}
	if fields.Status != StatusPending {
		return nil, status.Newf(status.RecallNonPendingFriendRequest,
			"the request is under the status "+string(fields.Status))
	}
	if IsExpired(fields.CreationDate, s.expireAfter(), time.Now()) {
		return nil, status.Newf(status.RecallNonPendingFriendRequest,
			"the request is under the status "+string(StatusExpired))
	}

	modified, err := s.updateStatusIfPending(ctx, nil, requestID, StatusCanceled, nil)
	if err != nil {
		return nil, err
	}
	if modified == 0 {
		// Lost the race to a concurrent response or an admin delete.
		return nil, status.New(status.RecallNonPendingFriendRequest)
	}
	s.versions.UpdateBestEffort(ctx, fields.RecipientID, userversion.StreamReceivedRequests)
	s.versions.UpdateBestEffort(ctx, fields.RequesterID, userversion.StreamSentRequests)
	return &FriendRequest{
		ID:           requestID,
		RequesterID:  fields.RequesterID,
		RecipientID:  fields.RecipientID,
		CreationDate: fields.CreationDate,
		Status:       StatusCanceled,
	}, nil
}

// AuthAndHandle applies the recipient's response to a pending request.
// ACCEPT runs in a store transaction together with the relationship
// mutation and is retried on transient transaction errors.
func (s *Service) AuthAndHandle(ctx context.Context, callerID, requestID int64, action Action, reason *string) (*HandleResult, error) {
	if reason != nil && len(*reason) > s.maxReasonLength() {
		return nil, status.Newf(status.IllegalArgument,
			"the reason length must not exceed "+strconv.Itoa(s.maxReasonLength()))
	}
	fields, err := s.findAuthFields(ctx, requestID)
	if err != nil {
		return nil, err
	}
	// Same code for "no such request" and "not the recipient".
	if fields == nil || fields.RecipientID != callerID {
		return nil, status.New(status.NotRecipientToUpdateFriendRequest)
	}
	if fields.Status != StatusPending {
		return nil, status.Newf(status.UpdateNonPendingFriendRequest,
			"the request is under the status "+string(fields.Status))
	}
	if IsExpired(fields.CreationDate, s.expireAfter(), time.Now()) {
		return nil, status.Newf(status.UpdateNonPendingFriendRequest,
			"the request is under the status "+string(StatusExpired))
	}

	request := &FriendRequest{
		ID:           requestID,
		RequesterID:  fields.RequesterID,
		RecipientID:  fields.RecipientID,
		CreationDate: fields.CreationDate,
		Reason:       reason,
	}

	switch action {
	case ActionAccept:
		var result relationship.FriendResult
		err := db.InTransaction(ctx, s.db, func(tx pgx.Tx) error {
			modified, err := s.updateStatusIfPending(ctx, tx, requestID, StatusAccepted, reason)
			if err != nil {
				return err
			}
			if modified == 0 {
				return status.New(status.UpdateNonPendingFriendRequest)
			}
			result, err = s.relationships.FriendTwoUsers(ctx, tx, fields.RequesterID, callerID)
			return err
		})
		if err != nil {
			return nil, err
		}
		s.bumpAfterHandle(ctx, fields)
		request.Status = StatusAccepted
		return &HandleResult{
			Request:             request,
			RequesterGroupIndex: &result.RequesterGroupIndex,
			RecipientGroupIndex: &result.RecipientGroupIndex,
		}, nil
	case ActionIgnore, ActionDecline:
		newStatus := StatusIgnored
		if action == ActionDecline {
			newStatus = StatusDeclined
		}
		modified, err := s.updateStatusIfPending(ctx, nil, requestID, newStatus, reason)
		if err != nil {
			return nil, err
		}
		if modified == 0 {
			return nil, status.New(status.UpdateNonPendingFriendRequest)
		}
		s.bumpAfterHandle(ctx, fields)
		request.Status = newStatus
		return &HandleResult{Request: request}, nil
	default:
		return nil, status.Newf(status.IllegalArgument, "unknown response action")
	}
}

func (s *Service) bumpAfterHandle(ctx context.Context, fields *authFields) {
	s.versions.UpdateBestEffort(ctx, fields.RecipientID, userversion.StreamReceivedRequests)
	s.versions.UpdateBestEffort(ctx, fields.RequesterID, userversion.StreamSentRequests)
}

// updateStatusIfPending is the conditional write every status transition
// goes through: the row is modified only while its stored status is still
// PENDING, and the caller distinguishes modified 0 from 1 to detect lost
// races.
func (s *Service) updateStatusIfPending(ctx context.Context, tx pgx.Tx, requestID int64, newStatus Status, reason *string) (int64, error) {
	if newStatus == StatusPending {
		return 0, status.Newf(status.IllegalArgument, "the request status must not be PENDING")
	}
	if !newStatus.Valid() {
		return 0, status.Newf(status.IllegalArgument, "invalid request status")
	}
	var exec db.Executor = s.db
	if tx != nil {
		exec = tx
	}
	tag, err := exec.Exec(ctx, `
		UPDATE user_friend_request
		SET status = $2, reason = COALESCE($3, reason), response_date = now()
		WHERE id = $1 AND status = 'PENDING'
	`, requestID, newStatus, reason)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UpdatePendingStatus is the internal CAS helper: on success it bumps the
// recipient's received-stream version best-effort.
func (s *Service) UpdatePendingStatus(ctx context.Context, requestID int64, newStatus Status, reason *string) (int64, error) {
	modified, err := s.updateStatusIfPending(ctx, nil, requestID, newStatus, reason)
	if err != nil || modified == 0 {
		return modified, err
	}
	var recipientID int64
	if err := s.db.QueryRow(ctx,
		`SELECT recipient_id FROM user_friend_request WHERE id = $1`,
		requestID).Scan(&recipientID); err == nil {
		s.versions.UpdateBestEffort(ctx, recipientID, userversion.StreamReceivedRequests)
	} else {
		log.Error().Err(err).Int64("requestId", requestID).
			Msg("failed to load the recipient for a version bump")
	}
	return modified, nil
}

// RequestsWithVersion is the incremental-sync payload of one request
// stream.
type RequestsWithVersion struct {
	Requests        []FriendRequest `json:"requests"`
	LastUpdatedDate time.Time       `json:"lastUpdatedDate"`
}

// QueryWithVersion returns the user's sent or received requests, with the
// expiry projection applied, unless the client is already current.
func (s *Service) QueryWithVersion(ctx context.Context, userID int64, areSentByUser bool, lastUpdatedDate *time.Time) (*RequestsWithVersion, error) {
	stream := userversion.StreamReceivedRequests
	column := "recipient_id"
	if areSentByUser {
		stream = userversion.StreamSentRequests
		column = "requester_id"
	}
	version, err := s.versions.Query(ctx, userID, stream)
	if err != nil {
		return nil, err
	}
	if version.IsZero() || (lastUpdatedDate != nil && !lastUpdatedDate.Before(version)) {
		return nil, status.New(status.AlreadyUpToDate)
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, requester_id, recipient_id, content, status, reason, creation_date, response_date
		FROM user_friend_request
		WHERE `+column+` = $1
		ORDER BY creation_date, id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests, err := scanRequests(rows)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, status.New(status.NoContent)
	}

	expireAfter := s.expireAfter()
	now := time.Now()
	for i := range requests {
		requests[i] = ProjectExpiry(requests[i], expireAfter, now)
	}
	return &RequestsWithVersion{Requests: requests, LastUpdatedDate: version}, nil
}

// FindByID returns one request with the projection applied, or nil when it
// does not exist. Admin surface.
func (s *Service) FindByID(ctx context.Context, requestID int64) (*FriendRequest, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, requester_id, recipient_id, content, status, reason, creation_date, response_date
		FROM user_friend_request
		WHERE id = $1
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	requests, err := scanRequests(rows)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, nil
	}
	request := ProjectExpiry(requests[0], s.expireAfter(), time.Now())
	return &request, nil
}

// Filter narrows admin request queries. Nil / empty fields are ignored.
type Filter struct {
	IDs               []int64
	RequesterIDs      []int64
	RecipientIDs      []int64
	Statuses          []Status
	CreationDateStart *time.Time
	CreationDateEnd   *time.Time
	ResponseDateStart *time.Time
	ResponseDateEnd   *time.Time
	Page              int
	Size              int
}

// QueryByFilter is the admin list query, projection applied.
func (s *Service) QueryByFilter(ctx context.Context, filter Filter) ([]FriendRequest, error) {
	sql, args := filter.buildWhere(`
		SELECT id, requester_id, recipient_id, content, status, reason, creation_date, response_date
		FROM user_friend_request
	`)
	sql += ` ORDER BY id`
	if filter.Size > 0 {
		sql += ` LIMIT ` + strconv.Itoa(filter.Size) + ` OFFSET ` + strconv.Itoa(filter.Page*filter.Size)
	}
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	requests, err := scanRequests(rows)
	if err != nil {
		return nil, err
	}
	expireAfter := s.expireAfter()
	now := time.Now()
	for i := range requests {
		requests[i] = ProjectExpiry(requests[i], expireAfter, now)
	}
	return requests, nil
}

// CountByFilter is the admin count query.
func (s *Service) CountByFilter(ctx context.Context, filter Filter) (int64, error) {
	sql, args := filter.buildWhere(`SELECT COUNT(*) FROM user_friend_request`)
	var count int64
	err := s.db.QueryRow(ctx, sql, args...).Scan(&count)
	return count, err
}

// UpdateParams are the admin batch update fields; nil fields are left
// unchanged.
type UpdateParams struct {
	RequesterID  *int64
	RecipientID  *int64
	Content      *string
	Status       *Status
	Reason       *string
	CreationDate *time.Time
	ResponseDate *time.Time
}

func (p UpdateParams) isEmpty() bool {
	return p.RequesterID == nil && p.RecipientID == nil && p.Content == nil &&
		p.Status == nil && p.Reason == nil && p.CreationDate == nil && p.ResponseDate == nil
}

// UpdateRequests is the admin batch update of an arbitrary field subset.
// No version side-effects: admins bypass incremental sync on purpose.
func (s *Service) UpdateRequests(ctx context.Context, requestIDs []int64, p UpdateParams) (int64, error) {
	if len(requestIDs) == 0 {
		return 0, status.Newf(status.IllegalArgument, "requestIds must not be empty")
	}
	if p.Status != nil && !p.Status.Valid() {
		return 0, status.Newf(status.IllegalArgument, "invalid request status")
	}
	if p.Content != nil && len(*p.Content) > s.maxContentLength() {
		return 0, status.Newf(status.IllegalArgument,
			"the content length must not exceed "+strconv.Itoa(s.maxContentLength()))
	}
	if p.Reason != nil && len(*p.Reason) > s.maxReasonLength() {
		return 0, status.Newf(status.IllegalArgument,
			"the reason length must not exceed "+strconv.Itoa(s.maxReasonLength()))
	}
	now := time.Now()
	if p.CreationDate != nil && p.CreationDate.After(now) {
		return 0, status.Newf(status.IllegalArgument, "the creation date must not be in the future")
	}
	if p.ResponseDate != nil && p.ResponseDate.After(now) {
		return 0, status.Newf(status.IllegalArgument, "the response date must not be in the future")
	}
	if p.isEmpty() {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE user_friend_request SET
			requester_id  = COALESCE($2, requester_id),
			recipient_id  = COALESCE($3, recipient_id),
			content       = COALESCE($4, content),
			status        = COALESCE($5, status),
			reason        = COALESCE($6, reason),
			creation_date = COALESCE($7, creation_date),
			response_date = COALESCE($8, response_date)
		WHERE id = ANY($1)
	`, requestIDs, p.RequesterID, p.RecipientID, p.Content, p.Status, p.Reason,
		p.CreationDate, p.ResponseDate)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteByIDs is the admin delete. A nil id set deletes nothing.
func (s *Service) DeleteByIDs(ctx context.Context, requestIDs []int64) (int64, error) {
	if len(requestIDs) == 0 {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx,
		`DELETE FROM user_friend_request WHERE id = ANY($1)`, requestIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// RemoveAllExpired deletes stored PENDING rows created before the given
// threshold. Housekeeping only: correctness never depends on it.
func (s *Service) RemoveAllExpired(ctx context.Context, threshold time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM user_friend_request
		WHERE status = 'PENDING' AND creation_date < $1
	`, threshold)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (f Filter) buildWhere(base string) (string, []any) {
	sql := base + ` WHERE true`
	args := []any{}
	if len(f.IDs) > 0 {
		args = append(args, f.IDs)
		sql += ` AND id = ANY($` + strconv.Itoa(len(args)) + `)`
	}
	if len(f.RequesterIDs) > 0 {
		args = append(args, f.RequesterIDs)
		sql += ` AND requester_id = ANY($` + strconv.Itoa(len(args)) + `)`
	}
	if len(f.RecipientIDs) > 0 {
		args = append(args, f.RecipientIDs)
		sql += ` AND recipient_id = ANY($` + strconv.Itoa(len(args)) + `)`
	}
	if len(f.Statuses) > 0 {
		args = append(args, f.Statuses)
		sql += ` AND status = ANY($` + strconv.Itoa(len(args)) + `)`
	}
	if f.CreationDateStart != nil {
		args = append(args, *f.CreationDateStart)
		sql += ` AND creation_date >= $` + strconv.Itoa(len(args))
	}
	if f.CreationDateEnd != nil {
		args = append(args, *f.CreationDateEnd)
		sql += ` AND creation_date < $` + strconv.Itoa(len(args))
	}
	if f.ResponseDateStart != nil {
		args = append(args, *f.ResponseDateStart)
		sql += ` AND response_date >= $` + strconv.Itoa(len(args))
	}
	if f.ResponseDateEnd != nil {
		args = append(args, *f.ResponseDateEnd)
		sql += ` AND response_date < $` + strconv.Itoa(len(args))
	}
	return sql, args
}

func scanRequests(rows pgx.Rows) ([]FriendRequest, error) {
	requests := make([]FriendRequest, 0, 16)
	for rows.Next() {
		var r FriendRequest
		if err := rows.Scan(&r.ID, &r.RequesterID, &r.RecipientID, &r.Content,
			&r.Status, &r.Reason, &r.CreationDate, &r.ResponseDate); err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}
